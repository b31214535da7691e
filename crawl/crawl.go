// Package crawl provides resumable, breadth-first crawling of accepted
// domains. It coordinates robots.txt checks, sitemap seeding, fetching with
// retry, content extraction, change detection and page storage, and keeps
// per-domain state in an Arena that is checkpointed as the crawl proceeds.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Crawl defaults.
const (
	DefaultMaxPages               = 200
	DefaultMaxDepth               = 2
	DefaultConcurrency            = 5
	DefaultCheckpointEvery        = 10
	DefaultMaxConsecutiveFailures = 10
)

// Crawler crawls domains and appends changed pages to the page log.
type Crawler struct {
	Fetcher   leadscout.Fetcher
	Robots    leadscout.RobotsPolicy
	Sitemaps  leadscout.SitemapService
	Links     leadscout.LinkExtractor
	Extractor leadscout.ContentExtractor
	Converter leadscout.Converter
	Pages     leadscout.PageService
	Domains   leadscout.DomainService
	Arena     *Arena

	// Limiter paces requests per domain. If it also has an
	// Observe(domain, latency, err) method, fetch outcomes are fed back to it,
	// and a SetFloor method receives the Crawl-delay reported by Robots.
	Limiter leadscout.DomainLimiter
	// Pool bounds page fetches across all domains.
	Pool *semaphore.Weighted

	MaxPages               int
	MaxDepth               int
	Concurrency            int
	CheckpointEvery        int
	MaxConsecutiveFailures int
	RetryDelays            []time.Duration

	// RootURL maps a domain to its start URL. Defaults to https://<domain>.
	RootURL func(domain string) string

	Logger   *slog.Logger
	Progress ProgressFunc

	group singleflight.Group
}

// Result holds the outcome of crawling one domain.
type Result struct {
	Domain  string `json:"domain"`
	Pass    int    `json:"pass"`
	Fetched int    `json:"fetched"`
	Stored  int    `json:"stored"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	// Disallowed counts URLs dropped because robots.txt forbids them.
	Disallowed int                   `json:"disallowed"`
	Status     leadscout.CrawlStatus `json:"status"`
	Err        error                 `json:"-"`
}

// ProgressEvent reports progress during a crawl.
type ProgressEvent struct {
	Type   ProgressType
	Domain string
	URL    string
	Error  error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressStarted ProgressType = iota
	ProgressStored
	ProgressSkipped
	ProgressFailed
	ProgressFinished
)

// ProgressFunc is a callback for reporting crawl progress.
type ProgressFunc func(event ProgressEvent)

type latencyObserver interface {
	Observe(domain string, latency time.Duration, err error)
}

// crawlDelayer is implemented by robots policies that expose Crawl-delay.
type crawlDelayer interface {
	CrawlDelay(ctx context.Context, url string) (time.Duration, error)
}

// delayFloor is implemented by limiters that accept a per-domain minimum
// interval.
type delayFloor interface {
	SetFloor(domain string, floor time.Duration)
}

// pageOutcome is the result of fetching and converting one frontier entry.
type pageOutcome struct {
	entry      leadscout.FrontierEntry
	title      string
	markdown   string
	hash       string
	links      []string
	disallowed bool
	err        error
}

// CrawlDomain crawls one domain until its frontier is exhausted, the page
// budget is spent, too many consecutive fetches fail, or ctx ends.
// Concurrent calls for the same domain share a single crawl.
func (c *Crawler) CrawlDomain(ctx context.Context, domain string) (*Result, error) {
	v, err, _ := c.group.Do(domain, func() (any, error) {
		return c.crawl(ctx, domain)
	})
	res, _ := v.(*Result)
	return res, err
}

// WithLimits returns a crawler sharing c's services, arena and pool with a
// different page budget and depth. Zero keeps c's value.
func (c *Crawler) WithLimits(maxPages, maxDepth int) *Crawler {
	if maxPages <= 0 {
		maxPages = c.MaxPages
	}
	if maxDepth <= 0 {
		maxDepth = c.MaxDepth
	}
	return &Crawler{
		Fetcher:                c.Fetcher,
		Robots:                 c.Robots,
		Sitemaps:               c.Sitemaps,
		Links:                  c.Links,
		Extractor:              c.Extractor,
		Converter:              c.Converter,
		Pages:                  c.Pages,
		Domains:                c.Domains,
		Arena:                  c.Arena,
		Limiter:                c.Limiter,
		Pool:                   c.Pool,
		MaxPages:               maxPages,
		MaxDepth:               maxDepth,
		Concurrency:            c.Concurrency,
		CheckpointEvery:        c.CheckpointEvery,
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
		RetryDelays:            c.RetryDelays,
		RootURL:                c.RootURL,
		Logger:                 c.Logger,
		Progress:               c.Progress,
	}
}

// CrawlDomains crawls several domains with at most parallel crawls running.
// Failures are isolated per domain and reported in each Result.
func (c *Crawler) CrawlDomains(ctx context.Context, domains []string, parallel int) ([]*Result, error) {
	if parallel <= 0 {
		parallel = 1
	}
	results := make([]*Result, len(domains))

	g := new(errgroup.Group)
	g.SetLimit(parallel)
	for i, domain := range domains {
		g.Go(func() error {
			res, err := c.CrawlDomain(ctx, domain)
			if res == nil {
				res = &Result{Domain: domain, Status: leadscout.CrawlFailed}
			}
			if err != nil {
				// Shared results must not be mutated.
				cp := *res
				cp.Err = err
				res = &cp
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

func (c *Crawler) crawl(ctx context.Context, domain string) (*Result, error) {
	logger := c.logger().With("domain", domain)

	ds, err := c.Arena.Acquire(ctx, domain)
	if err != nil {
		if leadscout.ErrorCode(err) == leadscout.ECORRUPT {
			reason := "crawl state unreadable: " + leadscout.ErrorMessage(err)
			if _, uerr := c.Domains.UpdateDomain(ctx, domain, leadscout.DomainUpdate{FailureReason: &reason}); uerr != nil {
				logger.Warn("record failure reason", "error", uerr)
			}
		}
		return nil, err
	}

	// Checkpoints must land even when ctx is canceled.
	saveCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := c.Arena.Release(saveCtx, ds); err != nil {
			logger.Error("final checkpoint failed", "error", err)
		}
	}()

	if err := c.setStatus(ctx, domain, leadscout.CrawlInProgress, nil); err != nil {
		return nil, err
	}
	ds.ResetFailures()
	if ds.Visited() == 0 && ds.Pending() == 0 {
		c.seed(ctx, ds)
	}
	c.honorCrawlDelay(ctx, domain)

	res := &Result{Domain: domain, Pass: ds.Pass()}
	c.progress(ProgressEvent{Type: ProgressStarted, Domain: domain})
	defer c.progress(ProgressEvent{Type: ProgressFinished, Domain: domain})

	err = c.traverse(ctx, saveCtx, ds, res)
	switch {
	case ctx.Err() != nil:
		res.Status = leadscout.CrawlQueued
		if serr := c.setStatus(saveCtx, domain, leadscout.CrawlQueued, nil); serr != nil {
			logger.Warn("record canceled crawl", "error", serr)
		}
		logger.Info("crawl interrupted", "visited", ds.Visited(), "pending", ds.Pending())
		return res, ctx.Err()

	case err != nil:
		res.Status = leadscout.CrawlFailed
		reason := leadscout.ErrorMessage(err)
		if serr := c.setStatus(saveCtx, domain, leadscout.CrawlFailed, func(u *leadscout.DomainUpdate) {
			u.FailureReason = &reason
		}); serr != nil {
			logger.Warn("record failed crawl", "error", serr)
		}
		logger.Warn("crawl failed", "reason", reason)
		return res, err
	}

	ds.Complete()
	res.Status = leadscout.CrawlCompleted
	pages := ds.Visited()
	now := time.Now().UTC()
	empty := ""
	if err := c.setStatus(saveCtx, domain, leadscout.CrawlCompleted, func(u *leadscout.DomainUpdate) {
		u.CrawlPages = &pages
		u.CrawledAt = &now
		u.FailureReason = &empty
	}); err != nil {
		return res, err
	}
	logger.Info("crawl completed", "pass", res.Pass, "fetched", res.Fetched,
		"stored", res.Stored, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// honorCrawlDelay passes the site's robots.txt Crawl-delay to the limiter.
func (c *Crawler) honorCrawlDelay(ctx context.Context, domain string) {
	cd, ok := c.Robots.(crawlDelayer)
	if !ok {
		return
	}
	floor, ok := c.Limiter.(delayFloor)
	if !ok {
		return
	}
	delay, err := cd.CrawlDelay(ctx, c.rootURL(domain))
	if err != nil {
		c.logger().Warn("crawl delay lookup failed", "domain", domain, "error", err)
		return
	}
	if delay > 0 {
		c.logger().Debug("honoring crawl delay", "domain", domain, "delay", delay)
	}
	floor.SetFloor(domain, delay)
}

// seed queues the root URL and the site's sitemap URLs.
func (c *Crawler) seed(ctx context.Context, ds *DomainState) {
	root := c.rootURL(ds.Domain())
	if canon, err := publicsuffix.Canonical(root); err == nil {
		ds.Enqueue(leadscout.FrontierEntry{URL: canon, Depth: 0})
	}
	if c.Sitemaps == nil || c.maxDepth() < 1 {
		return
	}

	urls, err := c.Sitemaps.DiscoverURLs(ctx, root)
	if err != nil {
		c.logger().Warn("sitemap discovery failed", "domain", ds.Domain(), "error", err)
		return
	}
	for _, u := range urls {
		if canon, ok := c.crawlable(u, root); ok {
			ds.Enqueue(leadscout.FrontierEntry{URL: canon, Depth: 1})
		}
	}
}

// traverse processes the frontier in batches of Concurrency entries. All
// state changes happen on this goroutine, between batches.
func (c *Crawler) traverse(ctx, saveCtx context.Context, ds *DomainState, res *Result) error {
	sinceCheckpoint := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		budget := c.maxPages() - ds.Visited()
		if budget <= 0 {
			return nil
		}

		var batch []leadscout.FrontierEntry
		for len(batch) < min(c.concurrency(), budget) {
			e, ok := ds.Next()
			if !ok {
				break
			}
			batch = append(batch, e)
		}
		if len(batch) == 0 {
			return nil
		}

		outcomes := make([]pageOutcome, len(batch))
		g := new(errgroup.Group)
		for i, e := range batch {
			g.Go(func() error {
				outcomes[i] = c.fetchPage(ctx, ds.Domain(), e)
				return nil
			})
		}
		_ = g.Wait()

		var interrupted []leadscout.FrontierEntry
		for _, o := range outcomes {
			if o.err != nil && ctx.Err() != nil {
				interrupted = append(interrupted, o.entry)
				continue
			}
			if err := c.apply(ctx, ds, o, res); err != nil {
				c.requeue(ds, interrupted)
				return err
			}
		}
		c.requeue(ds, interrupted)

		sinceCheckpoint += len(batch)
		if sinceCheckpoint >= c.checkpointEvery() {
			if err := c.Arena.Checkpoint(saveCtx, ds); err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
			sinceCheckpoint = 0
		}
	}
}

// requeue returns entries to the head of the frontier in their original order.
func (c *Crawler) requeue(ds *DomainState, entries []leadscout.FrontierEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		ds.Requeue(entries[i])
	}
}

// apply folds one page outcome into the domain state.
func (c *Crawler) apply(ctx context.Context, ds *DomainState, o pageOutcome, res *Result) error {
	domain := ds.Domain()
	if o.disallowed {
		// Not a failure: it neither spends the page budget nor counts
		// toward MaxConsecutiveFailures.
		ds.Drop(o.entry.URL)
		res.Disallowed++
		c.logger().Debug("page disallowed by robots.txt", "domain", domain, "url", o.entry.URL)
		return nil
	}
	if o.err != nil {
		n := ds.Fail(o.entry.URL)
		res.Failed++
		c.logger().Debug("page failed", "domain", domain, "url", o.entry.URL, "error", o.err)
		c.progress(ProgressEvent{Type: ProgressFailed, Domain: domain, URL: o.entry.URL, Error: o.err})
		if n >= c.maxConsecutiveFailures() {
			return leadscout.Errorf(leadscout.ETRANSIENT, "aborted after %d consecutive failures, last: %s",
				n, leadscout.ErrorMessage(o.err))
		}
		return nil
	}

	err := c.store(ctx, ds, o)
	switch {
	case errors.Is(err, leadscout.ErrDuplicateContent):
		res.Skipped++
		c.progress(ProgressEvent{Type: ProgressSkipped, Domain: domain, URL: o.entry.URL})
	case err != nil:
		// Leave the entry in flight so the next checkpoint requeues it.
		return fmt.Errorf("store page %s: %w", o.entry.URL, err)
	default:
		res.Stored++
		c.progress(ProgressEvent{Type: ProgressStored, Domain: domain, URL: o.entry.URL})
	}

	ds.Visit(o.entry.URL)
	res.Fetched++

	if o.entry.Depth < c.maxDepth() {
		for _, link := range o.links {
			if canon, ok := c.crawlable(link, o.entry.URL); ok {
				ds.Enqueue(leadscout.FrontierEntry{URL: canon, Depth: o.entry.Depth + 1})
			}
		}
	}
	return nil
}

// store appends a page record unless its content is already stored.
func (c *Crawler) store(ctx context.Context, ds *DomainState, o pageOutcome) error {
	if strings.TrimSpace(o.markdown) == "" || ds.Unchanged(o.entry.URL, o.hash) {
		return leadscout.ErrDuplicateContent
	}
	page := &leadscout.PageRecord{
		ID:          uuid.New().String(),
		Domain:      ds.Domain(),
		URL:         o.entry.URL,
		Title:       o.title,
		Depth:       o.entry.Depth,
		ContentHash: o.hash,
		Content:     o.markdown,
		FetchedAt:   time.Now().UTC(),
	}
	if err := c.Pages.CreatePage(ctx, page); err != nil {
		return err
	}
	ds.RecordContent(o.entry.URL, o.hash)
	return nil
}

// fetchPage fetches, extracts and converts one entry. It runs concurrently
// with its batch and must not touch domain state.
func (c *Crawler) fetchPage(ctx context.Context, domain string, entry leadscout.FrontierEntry) pageOutcome {
	out := pageOutcome{entry: entry}

	if c.Pool != nil {
		if err := c.Pool.Acquire(ctx, 1); err != nil {
			out.err = err
			return out
		}
		defer c.Pool.Release(1)
	}

	if c.Robots != nil {
		ok, err := c.Robots.Allowed(ctx, entry.URL)
		if err != nil {
			out.err = err
			return out
		}
		if !ok {
			out.disallowed = true
			return out
		}
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx, domain); err != nil {
			out.err = err
			return out
		}
	}

	start := time.Now()
	html, err := FetchWithRetry(ctx, entry.URL, c.Fetcher.Fetch, c.logRetry, c.retryDelays())
	if obs, ok := c.Limiter.(latencyObserver); ok && ctx.Err() == nil {
		obs.Observe(domain, time.Since(start), err)
	}
	if err != nil {
		out.err = err
		return out
	}

	if entry.Depth < c.maxDepth() && c.Links != nil {
		if links, err := c.Links.ExtractLinks(html, entry.URL); err == nil {
			out.links = links
		}
	}

	extracted, err := c.Extractor.Extract(html)
	if err != nil {
		out.err = fmt.Errorf("extract %s: %w", entry.URL, err)
		return out
	}
	markdown, err := c.Converter.Convert(extracted.ContentHTML)
	if err != nil {
		out.err = fmt.Errorf("convert %s: %w", entry.URL, err)
		return out
	}

	out.title = extracted.Title
	out.markdown = markdown
	out.hash = leadscout.HashContent(markdown)
	return out
}

func (c *Crawler) setStatus(ctx context.Context, domain string, status leadscout.CrawlStatus, fn func(*leadscout.DomainUpdate)) error {
	upd := leadscout.DomainUpdate{CrawlStatus: &status}
	if fn != nil {
		fn(&upd)
	}
	_, err := c.Domains.UpdateDomain(ctx, domain, upd)
	return err
}

func (c *Crawler) logRetry(url string, attempt int, err error) {
	c.logger().Debug("retrying fetch", "url", url, "attempt", attempt, "error", err)
}

func (c *Crawler) progress(e ProgressEvent) {
	if c.Progress != nil {
		c.Progress(e)
	}
}

// crawlable resolves and canonicalizes a link, keeping only same-site URLs
// that don't point at binary files.
func (c *Crawler) crawlable(link, base string) (string, bool) {
	canon, err := publicsuffix.Canonical(link)
	if err != nil {
		return "", false
	}
	if !publicsuffix.SameSite(canon, base) {
		return "", false
	}
	u, err := url.Parse(canon)
	if err != nil {
		return "", false
	}
	if _, skip := skippedExtensions[strings.ToLower(path.Ext(u.Path))]; skip {
		return "", false
	}
	return canon, true
}

var skippedExtensions = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {}, ".zip": {}, ".gz": {}, ".rar": {}, ".exe": {}, ".dmg": {}, ".mp3": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".css": {}, ".js": {}, ".json": {}, ".xml": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
}

func (c *Crawler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c *Crawler) rootURL(domain string) string {
	if c.RootURL != nil {
		return c.RootURL(domain)
	}
	return publicsuffix.Root(domain)
}

func (c *Crawler) maxPages() int {
	if c.MaxPages > 0 {
		return c.MaxPages
	}
	return DefaultMaxPages
}

func (c *Crawler) maxDepth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return DefaultMaxDepth
}

func (c *Crawler) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultConcurrency
}

func (c *Crawler) checkpointEvery() int {
	if c.CheckpointEvery > 0 {
		return c.CheckpointEvery
	}
	return DefaultCheckpointEvery
}

func (c *Crawler) maxConsecutiveFailures() int {
	if c.MaxConsecutiveFailures > 0 {
		return c.MaxConsecutiveFailures
	}
	return DefaultMaxConsecutiveFailures
}

func (c *Crawler) retryDelays() []time.Duration {
	if c.RetryDelays != nil {
		return c.RetryDelays
	}
	return DefaultRetryDelays()
}
