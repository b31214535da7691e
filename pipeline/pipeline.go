// Package pipeline chains the stages from discovery to the vector index and
// runs long operations as pollable jobs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/crawl"
	"github.com/fwojciec/leadscout/dedup"
	"github.com/fwojciec/leadscout/discover"
	"github.com/fwojciec/leadscout/extract"
	"github.com/fwojciec/leadscout/index"
	"github.com/fwojciec/leadscout/vet"
)

// DefaultCrawlParallelism is the number of domains crawled at once.
const DefaultCrawlParallelism = 4

// Trigger starts a pipeline run.
type Trigger struct {
	Industry string `json:"industry" yaml:"industry"`
	// Plan holds the seed keywords, negatives, TLDs and regions.
	Plan discover.Plan `json:"plan" yaml:"plan"`

	MaxResults int `json:"maxResults,omitempty" yaml:"maxResults"`
	MaxPages   int `json:"maxPages,omitempty" yaml:"maxPages"`
	MaxDepth   int `json:"maxDepth,omitempty" yaml:"maxDepth"`

	// SkipDiscovery starts from Domains, or from every known domain that
	// is not yet decided when Domains is empty.
	SkipDiscovery bool     `json:"skipDiscovery,omitempty" yaml:"skipDiscovery"`
	Domains       []string `json:"domains,omitempty" yaml:"domains"`
}

// Validate returns an error if the trigger cannot start a run.
func (t *Trigger) Validate() error {
	if !t.SkipDiscovery && len(t.Plan.Seeds) == 0 {
		return leadscout.Errorf(leadscout.EINVALID, "seed keywords required unless discovery is skipped")
	}
	if t.MaxResults < 0 || t.MaxPages < 0 || t.MaxDepth < 0 {
		return leadscout.Errorf(leadscout.EINVALID, "limits must not be negative")
	}
	return nil
}

// Stage interfaces are satisfied by the orchestrators of each package.
type (
	Discoverer interface {
		RunLimit(ctx context.Context, queries []string, maxResults int) (*discover.Report, error)
	}
	Deduper interface {
		CheckDomains(ctx context.Context, domains []string) []dedup.Result
	}
	DomainVetter interface {
		VetDomains(ctx context.Context, names []string) ([]*vet.Outcome, error)
	}
	DomainCrawler interface {
		CrawlDomains(ctx context.Context, domains []string, parallel int) ([]*crawl.Result, error)
	}
	DomainExtractor interface {
		ExtractDomains(ctx context.Context, domains []string) []extract.Result
	}
	DomainIndexer interface {
		IndexDomains(ctx context.Context, domains []string, force bool) []index.Result
	}
)

// Runner executes the stages in order. Every stage only receives the domains
// that survived the previous one, and failures are isolated per domain.
// Nil stages are skipped.
type Runner struct {
	Generator *discover.Generator
	Discovery Discoverer
	Dedup     Deduper
	Vetter    DomainVetter
	Crawler   DomainCrawler
	Extractor DomainExtractor
	Indexer   DomainIndexer
	Domains   leadscout.DomainService

	CrawlParallelism int
	Logger           *slog.Logger
}

// Report summarizes a pipeline run.
type Report struct {
	Queries    int               `json:"queries"`
	Discovery  *discover.Report  `json:"discovery,omitempty"`
	Candidates []string          `json:"candidates"`
	Duplicates []string          `json:"duplicates"`
	Accepted   []string          `json:"accepted"`
	Crawled    []string          `json:"crawled"`
	Extracted  []string          `json:"extracted"`
	Indexed    []string          `json:"indexed"`
	Failures   map[string]string `json:"failures,omitempty"`
}

func (r *Report) fail(domain, stage string, err error) {
	if r.Failures == nil {
		r.Failures = make(map[string]string)
	}
	r.Failures[domain] = stage + ": " + leadscout.ErrorMessage(err)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (r *Runner) crawlParallelism() int {
	if r.CrawlParallelism > 0 {
		return r.CrawlParallelism
	}
	return DefaultCrawlParallelism
}

// Run executes a trigger. report receives one line per stage and may be nil.
// A canceled run returns the partial report with the context error.
func (r *Runner) Run(ctx context.Context, t Trigger, report func(string)) (*Report, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if report == nil {
		report = func(string) {}
	}
	logger := r.logger().With("industry", t.Industry)
	rep := &Report{}

	domains, err := r.candidates(ctx, t, rep)
	if err != nil {
		return rep, err
	}
	rep.Candidates = domains
	report(fmt.Sprintf("discovery: %d candidates", len(domains)))

	if r.Dedup != nil {
		var kept []string
		for _, res := range r.Dedup.CheckDomains(ctx, domains) {
			switch {
			case res.Err != nil:
				rep.fail(res.Domain, "dedup", res.Err)
			case res.Record.Decision == leadscout.DedupDuplicate:
				rep.Duplicates = append(rep.Duplicates, res.Domain)
			default:
				kept = append(kept, res.Domain)
			}
		}
		domains = kept
		report(fmt.Sprintf("dedup: %d duplicates", len(rep.Duplicates)))
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	if r.Vetter != nil {
		outcomes, err := r.Vetter.VetDomains(ctx, domains)
		if err != nil {
			return rep, err
		}
		var kept []string
		for _, o := range outcomes {
			switch {
			case o.Err != nil:
				rep.fail(o.Domain, "vet", o.Err)
			case o.State == leadscout.VetAccepted:
				kept = append(kept, o.Domain)
			}
		}
		domains = kept
	}
	rep.Accepted = domains
	report(fmt.Sprintf("vet: %d accepted", len(domains)))

	if r.Crawler != nil {
		results, err := r.crawler(t).CrawlDomains(ctx, domains, r.crawlParallelism())
		if err != nil {
			return rep, err
		}
		var kept []string
		for _, res := range results {
			if res.Err != nil {
				rep.fail(res.Domain, "crawl", res.Err)
				continue
			}
			kept = append(kept, res.Domain)
		}
		domains = kept
		rep.Crawled = domains
		report(fmt.Sprintf("crawl: %d completed", len(domains)))
	}

	if r.Extractor != nil {
		var kept []string
		for _, res := range r.Extractor.ExtractDomains(ctx, domains) {
			if res.Err != nil {
				rep.fail(res.Domain, "extract", res.Err)
				continue
			}
			kept = append(kept, res.Domain)
		}
		domains = kept
		rep.Extracted = domains
		report(fmt.Sprintf("extract: %d extracted", len(domains)))
		if err := ctx.Err(); err != nil {
			return rep, err
		}
	}

	if r.Indexer != nil {
		for _, res := range r.Indexer.IndexDomains(ctx, domains, false) {
			if res.Err != nil {
				rep.fail(res.Domain, "embed", res.Err)
				continue
			}
			rep.Indexed = append(rep.Indexed, res.Domain)
		}
		report(fmt.Sprintf("embed: %d indexed", len(rep.Indexed)))
	}

	logger.Info("pipeline finished",
		"candidates", len(rep.Candidates),
		"duplicates", len(rep.Duplicates),
		"accepted", len(rep.Accepted),
		"indexed", len(rep.Indexed),
		"failures", len(rep.Failures),
	)
	return rep, ctx.Err()
}

// candidates returns the domains the run starts from.
func (r *Runner) candidates(ctx context.Context, t Trigger, rep *Report) ([]string, error) {
	if t.SkipDiscovery {
		if len(t.Domains) > 0 {
			return t.Domains, nil
		}
		return r.undecided(ctx)
	}
	if r.Discovery == nil {
		return nil, leadscout.Errorf(leadscout.EINVALID, "discovery not configured")
	}
	gen := r.Generator
	if gen == nil {
		gen = discover.NewGenerator()
	}
	queries := gen.Generate(t.Plan)
	rep.Queries = len(queries)

	dr, err := r.Discovery.RunLimit(ctx, queries, t.MaxResults)
	rep.Discovery = dr
	if err != nil {
		return nil, err
	}
	return dr.Accepted, nil
}

// undecided lists known domains that still need vetting.
func (r *Runner) undecided(ctx context.Context) ([]string, error) {
	if r.Domains == nil {
		return nil, leadscout.Errorf(leadscout.EINVALID, "domain store not configured")
	}
	var names []string
	for _, s := range []leadscout.VetState{leadscout.VetUnvetted, leadscout.VetUnclear} {
		domains, err := r.Domains.FindDomains(ctx, leadscout.DomainFilter{VetState: &s})
		if err != nil {
			return nil, err
		}
		for _, d := range domains {
			names = append(names, d.Name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// crawler applies the trigger's crawl limits when the crawler supports them.
func (r *Runner) crawler(t Trigger) DomainCrawler {
	if c, ok := r.Crawler.(*crawl.Crawler); ok && (t.MaxPages > 0 || t.MaxDepth > 0) {
		return c.WithLimits(t.MaxPages, t.MaxDepth)
	}
	return r.Crawler
}
