package leadscout

import (
	"context"
	"time"
)

// DedupDecision is the outcome of a duplicate-site check.
type DedupDecision string

// DedupDecision constants.
const (
	DedupNew       DedupDecision = "accept_new"
	DedupDuplicate DedupDecision = "reject_duplicate"
)

// DedupRecord documents a duplicate-site check against the closest match.
type DedupRecord struct {
	Candidate          string        `json:"candidate"`
	Matched            string        `json:"matched,omitempty"`
	PatternScore       float64       `json:"patternScore"`
	HomepageSimilarity float64       `json:"homepageSimilarity"`
	Decision           DedupDecision `json:"decision"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// DedupSignature is the cheap structural fingerprint of a domain.
type DedupSignature struct {
	Domain     string   `json:"domain"`
	Brand      string   `json:"brand"`
	PathShapes []string `json:"pathShapes"`
}

// HomepageFeatures are comparable features of a site's homepage.
type HomepageFeatures struct {
	Domain      string   `json:"domain"`
	CompanyName string   `json:"companyName"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Emails      []string `json:"emails"`
	Socials     []string `json:"socials"`
	// Shingles fingerprint the page template (tag and class sequences).
	Shingles []string `json:"shingles"`
}

// HomepageProbe fetches and parses homepage features.
type HomepageProbe interface {
	Features(ctx context.Context, domain string) (*HomepageFeatures, error)
}

// DedupService stores dedup decisions and cached comparison inputs.
type DedupService interface {
	SaveDedup(ctx context.Context, rec *DedupRecord) error
	FindDedups(ctx context.Context, candidate string) ([]*DedupRecord, error)

	// FindFeatures returns cached homepage features.
	// Returns ENOTFOUND if none are cached.
	FindFeatures(ctx context.Context, domain string) (*HomepageFeatures, error)
	SaveFeatures(ctx context.Context, f *HomepageFeatures) error

	// FindSignatures returns every cached signature.
	FindSignatures(ctx context.Context) ([]*DedupSignature, error)
	SaveSignature(ctx context.Context, sig *DedupSignature) error
}
