// Package dedup decides whether a discovered domain is a near-duplicate of a
// domain the pipeline already accepted. A cheap pattern score over brand
// names and URL path shapes gates a more expensive homepage comparison.
package dedup

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/leadscout"
)

// Deduplicator defaults.
const (
	DefaultPatternThreshold   = 0.20
	DefaultDuplicateThreshold = 0.85
)

// Thresholds gate duplicate decisions.
type Thresholds struct {
	// Pattern is the minimum pattern score that triggers a homepage
	// comparison.
	Pattern float64 `yaml:"pattern" json:"pattern"`
	// Duplicate is the minimum homepage similarity of a duplicate.
	Duplicate float64 `yaml:"duplicate" json:"duplicate"`
}

// DefaultThresholds returns the default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Pattern: DefaultPatternThreshold, Duplicate: DefaultDuplicateThreshold}
}

// Validate returns EINVALID for thresholds outside [0,1].
func (t Thresholds) Validate() error {
	if t.Pattern < 0 || t.Pattern > 1 || t.Duplicate < 0 || t.Duplicate > 1 {
		return leadscout.Errorf(leadscout.EINVALID, "dedup thresholds must be within [0,1]")
	}
	return nil
}

// Decide reports whether a pair with the given scores is a duplicate. It is
// monotone: lowering either threshold never turns a duplicate into a new
// domain.
func Decide(pattern, similarity float64, t Thresholds) bool {
	return pattern >= t.Pattern && similarity >= t.Duplicate
}

// Deduplicator checks candidate domains against the cached signatures of
// accepted domains.
type Deduplicator struct {
	Dedups leadscout.DedupService
	Hits   leadscout.HitService
	Probe  leadscout.HomepageProbe

	// Domains, when set, receives a rejected vetting outcome for every
	// duplicate.
	Domains leadscout.DomainService

	Thresholds Thresholds
	Logger     *slog.Logger
}

func (d *Deduplicator) thresholds() Thresholds {
	if d.Thresholds == (Thresholds{}) {
		return DefaultThresholds()
	}
	return d.Thresholds
}

func (d *Deduplicator) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Signature builds the structural signature of domain from its discovery
// hits.
func (d *Deduplicator) Signature(ctx context.Context, domain string) (*leadscout.DedupSignature, error) {
	hits, err := d.Hits.FindHits(ctx, leadscout.HitFilter{Domain: &domain})
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(hits))
	for _, h := range hits {
		urls = append(urls, h.URL)
	}
	return &leadscout.DedupSignature{
		Domain:     domain,
		Brand:      Brand(domain),
		PathShapes: PathShapes(urls),
	}, nil
}

// Check compares domain against every known signature. Homepages are only
// compared for pairs whose pattern score reaches the pattern threshold. The
// decision is recorded; a new domain also stores its signature so later
// candidates are compared against it.
func (d *Deduplicator) Check(ctx context.Context, domain string) (*leadscout.DedupRecord, error) {
	t := d.thresholds()
	if err := t.Validate(); err != nil {
		return nil, err
	}

	sig, err := d.Signature(ctx, domain)
	if err != nil {
		return nil, err
	}
	known, err := d.Dedups.FindSignatures(ctx)
	if err != nil {
		return nil, err
	}

	rec := &leadscout.DedupRecord{Candidate: domain, Decision: leadscout.DedupNew}
	var features *leadscout.HomepageFeatures
	for _, other := range known {
		if other.Domain == domain {
			continue
		}
		pattern := PatternScore(sig, other)
		if pattern < t.Pattern {
			continue
		}

		if features == nil {
			if features, err = d.features(ctx, domain); err != nil {
				return nil, err
			}
		}
		theirs, err := d.features(ctx, other.Domain)
		if err != nil {
			d.logger().Warn("homepage unavailable", "domain", other.Domain, "error", err)
			continue
		}
		sim := Similarity(features, theirs)
		d.logger().Debug("dedup compare", "candidate", domain, "other", other.Domain, "pattern", pattern, "similarity", sim)

		if better(pattern, sim, rec) {
			rec.Matched = other.Domain
			rec.PatternScore = pattern
			rec.HomepageSimilarity = sim
		}
		if Decide(pattern, sim, t) {
			rec.Decision = leadscout.DedupDuplicate
			break
		}
	}
	rec.CreatedAt = time.Now().UTC()

	if rec.Decision == leadscout.DedupNew {
		if err := d.Dedups.SaveSignature(ctx, sig); err != nil {
			return nil, err
		}
	}
	if err := d.Dedups.SaveDedup(ctx, rec); err != nil {
		return nil, err
	}
	if rec.Decision == leadscout.DedupDuplicate && d.Domains != nil {
		outcome := leadscout.VetOutcome{
			State:     leadscout.VetRejected,
			Decision:  leadscout.DecisionReject,
			Stage:     leadscout.StageRule,
			Score:     rec.HomepageSimilarity,
			Rationale: fmt.Sprintf("duplicate of %s", rec.Matched),
		}
		if err := d.Domains.SetVetting(ctx, domain, outcome); err != nil && leadscout.ErrorCode(err) != leadscout.ECONFLICT {
			return nil, err
		}
	}
	return rec, nil
}

// better orders matches by homepage similarity, then pattern score.
func better(pattern, sim float64, cur *leadscout.DedupRecord) bool {
	if cur.Matched == "" {
		return true
	}
	if c := cmp.Compare(sim, cur.HomepageSimilarity); c != 0 {
		return c > 0
	}
	return pattern > cur.PatternScore
}

// features returns cached homepage features, probing and caching on a miss.
func (d *Deduplicator) features(ctx context.Context, domain string) (*leadscout.HomepageFeatures, error) {
	f, err := d.Dedups.FindFeatures(ctx, domain)
	if err == nil {
		return f, nil
	}
	if leadscout.ErrorCode(err) != leadscout.ENOTFOUND {
		return nil, err
	}

	f, err = d.Probe.Features(ctx, domain)
	if err != nil {
		return nil, err
	}
	f.Domain = domain
	if err := d.Dedups.SaveFeatures(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Result is the dedup outcome of one domain in a batch.
type Result struct {
	Domain string                 `json:"domain"`
	Record *leadscout.DedupRecord `json:"record,omitempty"`
	Err    error                  `json:"-"`
}

// CheckDomains checks domains in order. Checks run one at a time because
// each new domain becomes a comparison target for the next.
func (d *Deduplicator) CheckDomains(ctx context.Context, domains []string) []Result {
	results := make([]Result, len(domains))
	for i, name := range domains {
		results[i].Domain = name
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		rec, err := d.Check(ctx, name)
		if err != nil {
			d.logger().Warn("dedup failed", "domain", name, "error", err)
			results[i].Err = err
			continue
		}
		results[i].Record = rec
	}
	return results
}
