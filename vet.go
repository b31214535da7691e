package leadscout

import (
	"context"
	"time"
)

// Decision is the outcome of a vetting stage.
type Decision string

// Decision constants.
const (
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
	DecisionUnclear Decision = "unclear"
)

// VetStage identifies which classifier produced a decision.
type VetStage string

// VetStage constants.
const (
	StageRule  VetStage = "rule"
	StageModel VetStage = "model"
)

// SoftSignals are cheap commerce signals probed from a homepage.
type SoftSignals struct {
	ProductSchema bool      `json:"productSchema"`
	Cart          bool      `json:"cart"`
	Platform      bool      `json:"platform"`
	PlatformName  string    `json:"platformName,omitempty"`
	CheckedAt     time.Time `json:"checkedAt,omitzero"`
}

// Any reports whether at least one commerce signal was found.
func (s SoftSignals) Any() bool {
	return s.ProductSchema || s.Cart || s.Platform
}

// SoftProber probes a domain's homepage for commerce signals.
type SoftProber interface {
	Probe(ctx context.Context, domain string) (*SoftSignals, error)
}

// SoftVetService caches soft-vet probe results per domain.
type SoftVetService interface {
	// FindSignals returns cached signals for a domain.
	// Returns ENOTFOUND if the domain was never probed.
	FindSignals(ctx context.Context, domain string) (*SoftSignals, error)

	// SaveSignals stores probe results for a domain.
	SaveSignals(ctx context.Context, domain string, signals *SoftSignals) error
}

// VettingRecord is a cached vetting decision for a specific content hash.
type VettingRecord struct {
	Domain      string    `json:"domain"`
	ContentHash string    `json:"contentHash"`
	Stage       VetStage  `json:"stage"`
	Decision    Decision  `json:"decision"`
	Rationale   string    `json:"rationale"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"createdAt"`
}

// VettingService stores vetting records keyed by (domain, content hash, stage).
type VettingService interface {
	// SaveVetting inserts or replaces the record for its key.
	SaveVetting(ctx context.Context, rec *VettingRecord) error

	// FindVetting retrieves the record for a key.
	// Returns ENOTFOUND if there is none.
	FindVetting(ctx context.Context, domain, contentHash string, stage VetStage) (*VettingRecord, error)

	// FindVettings retrieves every record, oldest first.
	FindVettings(ctx context.Context) ([]*VettingRecord, error)

	// DeleteVetting removes all records for a domain.
	DeleteVetting(ctx context.Context, domain string) error
}

// Classification is a model's accept/reject verdict on site content.
type Classification struct {
	Decision   Decision `json:"decision"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`
}

// Classifier decides whether site content belongs to the target industry.
type Classifier interface {
	// Classify returns DecisionAccept or DecisionReject with a rationale.
	// Returns EMODEL if the model fails or answers malformed output.
	Classify(ctx context.Context, domain, industry, content string) (*Classification, error)
}
