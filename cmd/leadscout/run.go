package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fwojciec/leadscout/pipeline"
)

// Run executes the run command.
func (c *RunCmd) Run(deps *Dependencies) error {
	plan := deps.Config.Plan
	plan.Seeds = append(plan.Seeds, c.Seeds...)
	plan.Negatives = append(plan.Negatives, c.Negative...)
	plan.TLDs = append(plan.TLDs, c.TLD...)
	plan.Regions = append(plan.Regions, c.Region...)

	t := pipeline.Trigger{
		Industry:      deps.Config.Industry,
		Plan:          plan,
		MaxResults:    c.MaxResults,
		MaxPages:      c.MaxPages,
		MaxDepth:      c.MaxDepth,
		SkipDiscovery: c.SkipDiscovery || len(c.Domains) > 0,
	}
	if len(c.Domains) > 0 {
		names, err := normalize(c.Domains)
		if err != nil {
			return err
		}
		t.Domains = names
	}

	if deps.Indexer == nil {
		fmt.Fprintln(deps.Stderr, "GEMINI_API_KEY not set: extraction and embedding are skipped and vetting stops at the rule stage")
	}
	if deps.Discovery != nil {
		attend(deps.Ctx, deps.Discovery, deps.Stdin, deps.Stderr)
	}

	rep, err := runner(deps).Run(deps.Ctx, t, func(line string) {
		fmt.Fprintln(deps.Stderr, line)
	})
	if rep != nil {
		printReport(deps.Stdout, rep)
	}
	return err
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "%d queries, %d candidates, %d duplicates, %d accepted, %d crawled, %d extracted, %d indexed\n",
		r.Queries, len(r.Candidates), len(r.Duplicates), len(r.Accepted), len(r.Crawled), len(r.Extracted), len(r.Indexed))
	for _, d := range r.Indexed {
		fmt.Fprintf(w, "+ %s\n", d)
	}
	failed := make([]string, 0, len(r.Failures))
	for d := range r.Failures {
		failed = append(failed, d)
	}
	sort.Strings(failed)
	for _, d := range failed {
		fmt.Fprintf(w, "! %s: %s\n", d, r.Failures[d])
	}
}
