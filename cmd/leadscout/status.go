package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fwojciec/leadscout"
)

// Run executes the status command.
func (c *StatusCmd) Run(deps *Dependencies) error {
	domains, err := deps.Domains.FindDomains(deps.Ctx, leadscout.DomainFilter{})
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		fmt.Fprintln(deps.Stdout, "No domains found. Use 'leadscout discover' or 'leadscout run' to find some.")
		return nil
	}

	vetStates := make(map[leadscout.VetState]int)
	crawlStates := make(map[leadscout.CrawlStatus]int)
	var extracted, embedded int
	for _, d := range domains {
		vetStates[d.VetState]++
		crawlStates[d.CrawlStatus]++
		if !d.ExtractedAt.IsZero() {
			extracted++
		}
		if !d.EmbeddedAt.IsZero() {
			embedded++
		}
	}

	fmt.Fprintf(deps.Stdout, "%d domains\n", len(domains))
	fmt.Fprintf(deps.Stdout, "vetting: %d unvetted, %d unclear, %d accepted, %d rejected\n",
		vetStates[leadscout.VetUnvetted]+vetStates[leadscout.VetRuleChecked],
		vetStates[leadscout.VetUnclear]+vetStates[leadscout.VetModelChecked],
		vetStates[leadscout.VetAccepted], vetStates[leadscout.VetRejected])
	fmt.Fprintf(deps.Stdout, "crawl: %d not started, %d queued, %d in progress, %d completed, %d failed\n",
		crawlStates[leadscout.CrawlNotStarted], crawlStates[leadscout.CrawlQueued], crawlStates[leadscout.CrawlInProgress],
		crawlStates[leadscout.CrawlCompleted], crawlStates[leadscout.CrawlFailed])
	fmt.Fprintf(deps.Stdout, "extracted: %d, embedded: %d\n", extracted, embedded)

	if !c.Domains {
		return nil
	}
	tw := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nDOMAIN\tVET\tCRAWL\tPAGES\tNOTE")
	for _, d := range domains {
		note := d.FailureReason
		if note == "" {
			note = d.VetRationale
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.Name, d.VetState, d.CrawlStatus, d.CrawlPages, note)
	}
	return tw.Flush()
}
