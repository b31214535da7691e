package main

import (
	"fmt"

	"github.com/fwojciec/leadscout"
)

// Run executes the embed command.
func (c *EmbedCmd) Run(deps *Dependencies) error {
	domains, err := targets(deps, c.Domains)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		fmt.Fprintln(deps.Stdout, "Nothing to embed. Use 'leadscout crawl' first.")
		return nil
	}

	if c.DryRun {
		for _, d := range domains {
			ch, err := deps.Indexer.Changes(deps.Ctx, d)
			if err != nil {
				fmt.Fprintf(deps.Stdout, "! %s: %s\n", d, leadscout.ErrorMessage(err))
				continue
			}
			if ch.Empty() {
				fmt.Fprintf(deps.Stdout, "%s: up to date\n", d)
				continue
			}
			for _, col := range leadscout.Collections() {
				if a, r := len(ch.Added[col]), len(ch.Removed[col]); a+r > 0 {
					fmt.Fprintf(deps.Stdout, "%s: %s +%d -%d\n", d, col, a, r)
				}
			}
		}
		return nil
	}

	var total int
	for _, r := range deps.Indexer.IndexDomains(deps.Ctx, domains, c.Force) {
		if r.Err != nil {
			fmt.Fprintf(deps.Stdout, "! %s: %s\n", r.Domain, leadscout.ErrorMessage(r.Err))
			continue
		}
		total += r.Stats.Embedded
		fmt.Fprintf(deps.Stdout, "%s: %d chunks, %d embedded, %d unchanged, %d removed\n",
			r.Domain, r.Stats.Chunks, r.Stats.Embedded, r.Stats.Skipped, r.Stats.Removed)
	}
	fmt.Fprintf(deps.Stdout, "%d chunks embedded\n", total)
	return deps.Ctx.Err()
}
