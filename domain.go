package leadscout

import (
	"context"
	"time"
)

// VetState is the position of a domain in the vetting state machine.
type VetState string

// VetState constants.
const (
	VetUnvetted     VetState = "unvetted"
	VetRuleChecked  VetState = "rule_checked"
	VetUnclear      VetState = "unclear"
	VetModelChecked VetState = "model_checked"
	VetAccepted     VetState = "accepted"
	VetRejected     VetState = "rejected"
)

// Decided reports whether the state carries a final accept/reject decision.
func (s VetState) Decided() bool {
	return s == VetAccepted || s == VetRejected
}

// CrawlStatus is the crawl lifecycle of a domain.
type CrawlStatus string

// CrawlStatus constants.
const (
	CrawlNotStarted CrawlStatus = "not_started"
	CrawlQueued     CrawlStatus = "queued"
	CrawlInProgress CrawlStatus = "in_progress"
	CrawlCompleted  CrawlStatus = "completed"
	CrawlFailed     CrawlStatus = "failed"
)

// Domain is a registrable domain found during discovery.
type Domain struct {
	Name    string      `json:"domain"`
	Sources []string    `json:"sources"`
	Signals SoftSignals `json:"signals"`

	VetState     VetState `json:"vetState"`
	Decision     Decision `json:"decision,omitempty"`
	VetStage     VetStage `json:"vetStage,omitempty"`
	VetScore     float64  `json:"vetScore"`
	VetRationale string   `json:"vetRationale,omitempty"`

	CrawlStatus   CrawlStatus `json:"crawlStatus"`
	CrawlPages    int         `json:"crawlPages"`
	FailureReason string      `json:"failureReason,omitempty"`

	DiscoveredAt time.Time `json:"discoveredAt"`
	VettedAt     time.Time `json:"vettedAt,omitzero"`
	CrawledAt    time.Time `json:"crawledAt,omitzero"`
	ExtractedAt  time.Time `json:"extractedAt,omitzero"`
	EmbeddedAt   time.Time `json:"embeddedAt,omitzero"`
}

// Validate returns an error if the domain contains invalid fields.
func (d *Domain) Validate() error {
	if d.Name == "" {
		return Errorf(EINVALID, "domain name required")
	}
	return nil
}

// VetOutcome holds the decision fields written by a successful vetting pass.
type VetOutcome struct {
	State     VetState
	Decision  Decision
	Stage     VetStage
	Score     float64
	Rationale string
}

// DomainService represents a service for managing domains.
type DomainService interface {
	// CreateDomain creates a new domain in the unvetted, not-started state.
	// Returns ECONFLICT if the domain already exists.
	CreateDomain(ctx context.Context, d *Domain) error

	// FindDomainByName retrieves a domain by name.
	// Returns ENOTFOUND if the domain does not exist.
	FindDomainByName(ctx context.Context, name string) (*Domain, error)

	// FindDomains retrieves domains matching the filter.
	FindDomains(ctx context.Context, filter DomainFilter) ([]*Domain, error)

	// SetVetting records the outcome of a vetting pass.
	// Returns ECONFLICT if the domain already carries a final decision.
	SetVetting(ctx context.Context, name string, outcome VetOutcome) error

	// ResetVetting clears the decision fields so the domain can be vetted again.
	ResetVetting(ctx context.Context, name string) error

	// UpdateDomain updates crawl fields and stage timestamps.
	UpdateDomain(ctx context.Context, name string, upd DomainUpdate) (*Domain, error)
}

// DomainFilter represents a filter for FindDomains.
type DomainFilter struct {
	Name        *string      `json:"name"`
	VetState    *VetState    `json:"vetState"`
	CrawlStatus *CrawlStatus `json:"crawlStatus"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// DomainUpdate represents a set of fields to update on a domain.
type DomainUpdate struct {
	CrawlStatus   *CrawlStatus
	CrawlPages    *int
	FailureReason *string
	Signals       *SoftSignals
	Sources       []string
	CrawledAt     *time.Time
	ExtractedAt   *time.Time
	EmbeddedAt    *time.Time
}

// DiscoveredHit is a single search result attributed to a domain.
type DiscoveredHit struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	URL          string    `json:"url"`
	Query        string    `json:"query"`
	Engine       string    `json:"engine"`
	Rank         int       `json:"rank"`
	Snippet      string    `json:"snippet,omitempty"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// HitService represents a service for the append-only discovery log.
type HitService interface {
	// CreateHits appends hits to the log.
	CreateHits(ctx context.Context, hits []*DiscoveredHit) error

	// FindHits retrieves hits matching the filter, oldest first.
	FindHits(ctx context.Context, filter HitFilter) ([]*DiscoveredHit, error)
}

// HitFilter represents a filter for FindHits.
type HitFilter struct {
	Domain *string
	Engine *string

	Offset int
	Limit  int
}
