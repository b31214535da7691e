package main

import (
	"fmt"

	"github.com/fwojciec/leadscout"
)

// Run executes the extract command.
func (c *ExtractCmd) Run(deps *Dependencies) error {
	domains, err := targets(deps, c.Domains)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		fmt.Fprintln(deps.Stdout, "Nothing to extract. Use 'leadscout crawl' first.")
		return nil
	}

	var failed int
	for _, r := range deps.Extractor.ExtractDomains(deps.Ctx, domains) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(deps.Stdout, "! %s: %s\n", r.Domain, leadscout.ErrorMessage(r.Err))
			continue
		}
		fmt.Fprintf(deps.Stdout, "%s: %d products\n", r.Domain, r.Products)
	}
	fmt.Fprintf(deps.Stdout, "%d extracted, %d failed, results in %s\n", len(domains)-failed, failed, deps.Exporter.Dir())
	return deps.Ctx.Err()
}

// targets returns the named domains, or every completely crawled domain.
func targets(deps *Dependencies, named []string) ([]string, error) {
	if len(named) > 0 {
		return normalize(named)
	}
	return domainsWhere(deps.Ctx, deps.Domains, func(d *leadscout.Domain) bool {
		return d.CrawlStatus == leadscout.CrawlCompleted
	})
}
