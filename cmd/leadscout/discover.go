package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/fwojciec/leadscout/discover"
)

// Run executes the discover command.
func (c *DiscoverCmd) Run(deps *Dependencies) error {
	plan := deps.Config.Plan
	plan.Seeds = append(plan.Seeds, c.Seeds...)
	plan.Negatives = append(plan.Negatives, c.Negative...)
	plan.TLDs = append(plan.TLDs, c.TLD...)
	plan.Regions = append(plan.Regions, c.Region...)
	if c.MaxQueries > 0 {
		plan.MaxQueries = c.MaxQueries
	}

	queries := deps.Generator.Generate(plan)
	if c.DryRun {
		for _, q := range queries {
			fmt.Fprintln(deps.Stdout, q)
		}
		return nil
	}

	attend(deps.Ctx, deps.Discovery, deps.Stdin, deps.Stderr)
	report, err := deps.Discovery.RunLimit(deps.Ctx, queries, c.MaxResults)
	if report != nil {
		printDiscovery(deps.Stdout, len(queries), report)
	}
	return err
}

// attend prompts on stderr when a search engine pauses on a challenge and
// resumes every paused engine when a line is read from stdin.
func attend(ctx context.Context, e *discover.Engine, stdin io.Reader, stderr io.Writer) {
	e.OnAttention = func(a discover.Attention) {
		fmt.Fprintf(stderr, "%s paused on %q (page %d): %s\nSolve the challenge in the browser, then press Enter to resume.\n",
			a.Engine, a.Query, a.Page+1, a.Reason)
	}
	if stdin == nil {
		return
	}
	go func() {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			for _, a := range e.Attention() {
				if err := e.Resume(a.Engine); err == nil {
					fmt.Fprintf(stderr, "%s resumed\n", a.Engine)
				}
			}
		}
	}()
}

func printDiscovery(w io.Writer, queries int, r *discover.Report) {
	fmt.Fprintf(w, "%d queries, %d hits, %d candidates, %d accepted, %d discarded\n",
		queries, r.Hits, r.Candidates, len(r.Accepted), len(r.Discarded))
	for _, s := range r.Stats {
		line := fmt.Sprintf("  %s: %s, %d queries, %d results, %d errors, %d challenges",
			s.Engine, s.State, s.Queries, s.Results, s.Errors, s.Challenges)
		if s.LastError != "" {
			line += " (last error: " + s.LastError + ")"
		}
		fmt.Fprintln(w, line)
	}
	for _, d := range r.Accepted {
		fmt.Fprintf(w, "+ %s\n", d)
	}
}
