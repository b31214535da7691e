package leadscout

import (
	"context"
	"time"
)

// FrontierEntry is a queued URL and its BFS depth.
type FrontierEntry struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// CrawlState is the resumable crawl state of one domain.
type CrawlState struct {
	Domain string `json:"domain"`
	// Pass counts full traversals; a completed state starts the next pass.
	Pass      int             `json:"pass"`
	Visited   []string        `json:"visited"`
	Frontier  []FrontierEntry `json:"frontier"`
	Failed    []string        `json:"failed"`
	Retries   map[string]int  `json:"retries"`
	Completed bool            `json:"completed"`

	// URLHashes maps a URL to the content hash last stored for it.
	URLHashes map[string]string `json:"urlHashes"`
	// ContentHashes is the set of every content hash stored for the domain.
	ContentHashes []string `json:"contentHashes"`

	ConsecutiveFailures int       `json:"consecutiveFailures"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// CrawlStateService persists crawl state snapshots.
type CrawlStateService interface {
	// LoadCrawlState returns the last checkpoint of a domain.
	// Returns ENOTFOUND if there is none and ECORRUPT if it cannot be decoded.
	LoadCrawlState(ctx context.Context, domain string) (*CrawlState, error)

	// SaveCrawlState replaces the checkpoint of a domain.
	SaveCrawlState(ctx context.Context, state *CrawlState) error

	// DeleteCrawlState removes the checkpoint of a domain.
	DeleteCrawlState(ctx context.Context, domain string) error
}
