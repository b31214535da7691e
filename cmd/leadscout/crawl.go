package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/crawl"
)

// progressWidth is the URL width of per-page progress lines.
const progressWidth = 80

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	domains := c.Domains
	if len(domains) == 0 {
		accepted, err := domainsWhere(deps.Ctx, deps.Domains, func(d *leadscout.Domain) bool {
			return d.VetState == leadscout.VetAccepted && d.CrawlStatus != leadscout.CrawlCompleted
		})
		if err != nil {
			return err
		}
		domains = accepted
	} else {
		names, err := normalize(domains)
		if err != nil {
			return err
		}
		domains = names
	}
	if len(domains) == 0 {
		fmt.Fprintln(deps.Stdout, "Nothing to crawl. Use 'leadscout vet' to accept domains first.")
		return nil
	}

	crawler := deps.Crawler.WithLimits(c.MaxPages, c.MaxDepth)
	if c.Progress {
		crawler.Progress = func(e crawl.ProgressEvent) {
			if line := crawl.FormatEvent(e, progressWidth); line != "" {
				fmt.Fprintln(deps.Stderr, line)
			}
		}
	}

	results, err := crawler.CrawlDomains(deps.Ctx, domains, deps.Config.Crawl.Parallel)
	for _, r := range results {
		fmt.Fprintln(deps.Stdout, crawl.FormatResult(r))
	}
	return err
}

// domainsWhere returns the sorted names of stored domains matching keep.
func domainsWhere(ctx context.Context, svc leadscout.DomainService, keep func(*leadscout.Domain) bool) ([]string, error) {
	all, err := svc.FindDomains(ctx, leadscout.DomainFilter{})
	if err != nil {
		return nil, err
	}
	var names []string
	for _, d := range all {
		if keep(d) {
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}
