package main

import (
	"fmt"
	"io"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
	"github.com/fwojciec/leadscout/vet"
)

// Run executes the vet command.
func (c *VetCmd) Run(deps *Dependencies) error {
	var (
		outcomes []*vet.Outcome
		err      error
	)
	if len(c.Domains) == 0 {
		outcomes, err = deps.Vetter.VetPending(deps.Ctx)
	} else {
		names, nerr := normalize(c.Domains)
		if nerr != nil {
			return nerr
		}
		outcomes, err = deps.Vetter.VetDomains(deps.Ctx, names)
	}
	printOutcomes(deps.Stdout, outcomes)
	return err
}

// Run executes the revet command.
func (c *RevetCmd) Run(deps *Dependencies) error {
	names, err := normalize(c.Domains)
	if err != nil {
		return err
	}
	outcomes, err := deps.Vetter.Revet(deps.Ctx, names, vet.Thresholds{
		AcceptRelevance: c.AcceptRelevance,
		MinRelevance:    c.MinRelevance,
	})
	printOutcomes(deps.Stdout, outcomes)
	return err
}

func printOutcomes(w io.Writer, outcomes []*vet.Outcome) {
	counts := make(map[leadscout.VetState]int)
	for _, o := range outcomes {
		counts[o.State]++
		switch {
		case o.Err != nil:
			fmt.Fprintf(w, "! %s: %s\n", o.Domain, leadscout.ErrorMessage(o.Err))
		case o.Cached:
			fmt.Fprintf(w, "%s: %s (%s, %.2f, cached) %s\n", o.Domain, o.State, o.Stage, o.Score, o.Rationale)
		default:
			fmt.Fprintf(w, "%s: %s (%s, %.2f) %s\n", o.Domain, o.State, o.Stage, o.Score, o.Rationale)
		}
	}
	fmt.Fprintf(w, "%d vetted: %d accepted, %d rejected, %d unclear\n",
		len(outcomes), counts[leadscout.VetAccepted], counts[leadscout.VetRejected], counts[leadscout.VetUnclear])
}

// normalize reduces user-supplied hosts or URLs to registrable domains.
func normalize(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, leadscout.Errorf(leadscout.EINVALID, "at least one domain required")
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		d, err := publicsuffix.Domain(r)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}
