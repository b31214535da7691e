package main

import (
	"fmt"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/fs"
)

// Run executes the export command.
func (c *ExportCmd) Run(deps *Dependencies) error {
	exp := deps.Exporter
	if c.Dir != "" {
		exp = fs.NewExporter(c.Dir)
	}
	ctx := deps.Ctx

	domains, err := deps.Domains.FindDomains(ctx, leadscout.DomainFilter{})
	if err != nil {
		return err
	}
	if err := exp.WriteDomains(ctx, domains); err != nil {
		return err
	}

	vettings, err := deps.Vettings.FindVettings(ctx)
	if err != nil {
		return err
	}
	if err := exp.WriteVettings(ctx, vettings); err != nil {
		return err
	}

	var states, pages int
	for _, d := range domains {
		state, err := deps.CrawlStates.LoadCrawlState(ctx, d.Name)
		switch {
		case leadscout.ErrorCode(err) == leadscout.ENOTFOUND:
			continue
		case err != nil:
			return err
		}
		if err := exp.WriteCrawlState(ctx, state); err != nil {
			return err
		}
		states++

		name := d.Name
		records, err := deps.Pages.FindPages(ctx, leadscout.PageFilter{Domain: &name})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}
		if err := exp.WritePages(ctx, name, records); err != nil {
			return err
		}
		pages += len(records)
	}

	results, err := deps.Extractions.FindExtractions(ctx, leadscout.ExtractionFilter{})
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := exp.WriteExtraction(ctx, r); err != nil {
			return err
		}
	}
	if err := exp.WriteIndexes(ctx, results); err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "exported %d domains, %d vetting records, %d crawl states, %d pages, %d companies to %s\n",
		len(domains), len(vettings), states, pages, len(results), exp.Dir())
	return nil
}
