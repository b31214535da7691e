package vet

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/leadscout"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds how many domains are vetted at once.
const DefaultParallelism = 4

// Step returns the state a domain moves to when stage decides d while the
// domain is in state from. The rule stage runs on unvetted domains and the
// model stage on unclear ones; every other combination is ECONFLICT.
func Step(from leadscout.VetState, stage leadscout.VetStage, d leadscout.Decision) (leadscout.VetState, error) {
	switch {
	case stage == leadscout.StageRule && (from == leadscout.VetUnvetted || from == leadscout.VetRuleChecked):
		switch d {
		case leadscout.DecisionAccept:
			return leadscout.VetAccepted, nil
		case leadscout.DecisionReject:
			return leadscout.VetRejected, nil
		case leadscout.DecisionUnclear:
			return leadscout.VetUnclear, nil
		}
	case stage == leadscout.StageModel && (from == leadscout.VetUnclear || from == leadscout.VetModelChecked):
		switch d {
		case leadscout.DecisionAccept:
			return leadscout.VetAccepted, nil
		case leadscout.DecisionReject:
			return leadscout.VetRejected, nil
		}
	}
	return "", leadscout.Errorf(leadscout.ECONFLICT, "cannot apply %s decision %q in state %s", stage, d, from)
}

// Outcome reports how a domain was vetted.
type Outcome struct {
	Domain    string             `json:"domain"`
	State     leadscout.VetState `json:"state"`
	Decision  leadscout.Decision `json:"decision,omitempty"`
	Stage     leadscout.VetStage `json:"stage,omitempty"`
	Score     float64            `json:"score"`
	Rationale string             `json:"rationale,omitempty"`
	// Cached is set when the model decision came from the cache.
	Cached bool  `json:"cached,omitempty"`
	Err    error `json:"-"`
}

// Vetter runs the vetting state machine for domains and records every
// decision on the domain and in the vetting log.
type Vetter struct {
	Domains  leadscout.DomainService
	Records  leadscout.VettingService
	Loader   ContentLoader
	Rules    *RuleVetter
	Model    *ModelVetter
	Industry string

	Parallelism int
	Logger      *slog.Logger
}

// VetDomain advances a domain through the state machine until it is decided
// or the model stage is unavailable. Decided domains are returned as they
// are. A domain whose content cannot be fetched is rejected with a
// "fetch failed" rationale so it can be re-vetted later.
func (v *Vetter) VetDomain(ctx context.Context, name string) (*Outcome, error) {
	d, err := v.Domains.FindDomainByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if d.VetState.Decided() {
		return outcomeOf(d), nil
	}
	logger := v.logger().With("domain", name)

	c, err := v.Loader.Load(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("content fetch failed", "error", err)
		stage := leadscout.StageRule
		if d.VetState == leadscout.VetUnclear || d.VetState == leadscout.VetModelChecked {
			stage = leadscout.StageModel
		}
		return v.record(ctx, d, stage, leadscout.DecisionReject, 0, "fetch failed: "+describe(err))
	}

	state := d.VetState
	if state == leadscout.VetUnvetted || state == leadscout.VetRuleChecked {
		verdict := v.Rules.Evaluate(c)
		if err := v.Records.SaveVetting(ctx, &leadscout.VettingRecord{
			Domain:      name,
			ContentHash: c.Hash,
			Stage:       leadscout.StageRule,
			Decision:    verdict.Decision,
			Rationale:   verdict.Rationale,
			Score:       verdict.Relevance,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		logger.Debug("rule stage", "decision", verdict.Decision, "relevance", verdict.Relevance, "markers", verdict.Markers)

		out, err := v.record(ctx, d, leadscout.StageRule, verdict.Decision, verdict.Relevance, verdict.Rationale)
		if err != nil || out.State != leadscout.VetUnclear {
			return out, err
		}
		state = leadscout.VetUnclear
	}

	if state != leadscout.VetUnclear && state != leadscout.VetModelChecked {
		return nil, leadscout.Errorf(leadscout.ECONFLICT, "domain %q in unexpected state %s", name, state)
	}
	if v.Model == nil {
		return &Outcome{Domain: name, State: leadscout.VetUnclear, Decision: leadscout.DecisionUnclear, Stage: leadscout.StageRule}, nil
	}

	rec, cached, err := v.Model.Decide(ctx, c, v.Industry)
	if err != nil {
		logger.Warn("model stage failed", "error", err)
		return &Outcome{Domain: name, State: leadscout.VetUnclear, Decision: leadscout.DecisionUnclear, Stage: leadscout.StageRule, Err: err}, err
	}
	d.VetState = state
	out, err := v.record(ctx, d, leadscout.StageModel, rec.Decision, rec.Score, rec.Rationale)
	if out != nil {
		out.Cached = cached
	}
	return out, err
}

// VetDomains vets domains concurrently. Failures are isolated per domain
// and reported in each Outcome.
func (v *Vetter) VetDomains(ctx context.Context, names []string) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(names))
	g := new(errgroup.Group)
	g.SetLimit(v.parallelism())
	for i, name := range names {
		g.Go(func() error {
			out, err := v.VetDomain(ctx, name)
			if out == nil {
				out = &Outcome{Domain: name}
			}
			if err != nil {
				out.Err = err
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, ctx.Err()
}

// VetPending vets every unvetted or unclear domain.
func (v *Vetter) VetPending(ctx context.Context) ([]*Outcome, error) {
	var names []string
	for _, s := range []leadscout.VetState{leadscout.VetUnvetted, leadscout.VetRuleChecked, leadscout.VetUnclear, leadscout.VetModelChecked} {
		domains, err := v.Domains.FindDomains(ctx, leadscout.DomainFilter{VetState: &s})
		if err != nil {
			return nil, err
		}
		for _, d := range domains {
			names = append(names, d.Name)
		}
	}
	return v.VetDomains(ctx, names)
}

// Revet discards the cached vetting records and decision of each domain and
// runs the state machine again with revised rule thresholds. Zero threshold
// fields keep the configured values.
func (v *Vetter) Revet(ctx context.Context, names []string, t Thresholds) ([]*Outcome, error) {
	revised := *v
	rules := *v.Rules
	rules.Thresholds = t.Merge(v.Rules.Thresholds)
	if err := rules.Thresholds.Merge(DefaultThresholds()).Validate(); err != nil {
		return nil, err
	}
	revised.Rules = &rules

	for _, name := range names {
		if err := v.Records.DeleteVetting(ctx, name); err != nil {
			return nil, err
		}
		if err := v.Domains.ResetVetting(ctx, name); err != nil {
			return nil, err
		}
	}
	return revised.VetDomains(ctx, names)
}

// record applies a stage decision to the domain.
func (v *Vetter) record(ctx context.Context, d *leadscout.Domain, stage leadscout.VetStage, decision leadscout.Decision, score float64, rationale string) (*Outcome, error) {
	next, err := Step(d.VetState, stage, decision)
	if err != nil {
		return nil, err
	}
	if err := v.Domains.SetVetting(ctx, d.Name, leadscout.VetOutcome{
		State:     next,
		Decision:  decision,
		Stage:     stage,
		Score:     score,
		Rationale: rationale,
	}); err != nil {
		return nil, err
	}
	v.logger().Info("vetted", "domain", d.Name, "stage", stage, "state", next)
	return &Outcome{Domain: d.Name, State: next, Decision: decision, Stage: stage, Score: score, Rationale: rationale}, nil
}

func outcomeOf(d *leadscout.Domain) *Outcome {
	return &Outcome{
		Domain:    d.Name,
		State:     d.VetState,
		Decision:  d.Decision,
		Stage:     d.VetStage,
		Score:     d.VetScore,
		Rationale: d.VetRationale,
	}
}

func describe(err error) string {
	if leadscout.ErrorCode(err) == leadscout.EINTERNAL {
		return err.Error()
	}
	return leadscout.ErrorMessage(err)
}

func (v *Vetter) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (v *Vetter) parallelism() int {
	if v.Parallelism > 0 {
		return v.Parallelism
	}
	return DefaultParallelism
}
