// Package extract turns the crawled pages of a domain into a company profile
// and a product catalog with a language model.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/leadscout"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Extractor defaults.
const (
	DefaultParallelism = 3
	DefaultRetries     = 4
)

// DefaultRetryDelays are the waits between model attempts on a batch.
var DefaultRetryDelays = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}

// ResultWriter receives every saved extraction, for example to export it to
// disk.
type ResultWriter interface {
	WriteExtraction(ctx context.Context, result *leadscout.ExtractionResult) error
}

// Extractor runs catalog extraction per domain. A domain either gets a full
// new result or keeps its previous one: nothing is saved unless every batch
// succeeds.
type Extractor struct {
	Pages   leadscout.PageService
	Model   leadscout.CatalogModel
	Results leadscout.ExtractionService
	// Domains, when set, gets the extraction timestamp of each domain.
	Domains leadscout.DomainService
	// Writer, when set, receives each saved result.
	Writer ResultWriter

	// Industry narrows product extraction.
	Industry string

	BatchChars  int
	CharLimit   int
	Parallelism int
	Retries     int
	RetryDelays []time.Duration
	// CallTimeout bounds each model call. Zero means
	// leadscout.DefaultModelTimeout.
	CallTimeout time.Duration
	// Limiter paces model calls.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

func (e *Extractor) batchChars() int {
	if e.BatchChars > 0 {
		return e.BatchChars
	}
	return DefaultBatchChars
}

func (e *Extractor) charLimit() int {
	if e.CharLimit > 0 {
		return e.CharLimit
	}
	return DefaultCharLimit
}

func (e *Extractor) parallelism() int {
	if e.Parallelism > 0 {
		return e.Parallelism
	}
	return DefaultParallelism
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// ExtractDomain extracts and saves the result of one domain. It returns
// ENOTFOUND when the domain has no crawled pages.
func (e *Extractor) ExtractDomain(ctx context.Context, domain string) (*leadscout.ExtractionResult, error) {
	pages, err := e.Pages.FindPages(ctx, leadscout.PageFilter{Domain: &domain, Latest: true})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no crawled pages for %q", domain)
	}

	batches := Batches(pages, e.batchChars(), e.charLimit())
	pageCount := 0
	for _, b := range batches {
		pageCount += b.Pages
	}
	e.logger().Info("extracting", "domain", domain, "pages", pageCount, "batches", len(batches))

	profiles := make([]*leadscout.CompanyProfile, len(batches))
	products := make([][]*leadscout.Product, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism())
	for i, b := range batches {
		g.Go(func() error {
			p, err := withRetry(gctx, e, func(ctx context.Context) (*leadscout.CompanyProfile, error) {
				return e.Model.ExtractProfile(ctx, domain, b.Content)
			})
			if err != nil {
				return fmt.Errorf("profile batch %d: %w", i+1, err)
			}
			profiles[i] = p
			return nil
		})
		g.Go(func() error {
			ps, err := withRetry(gctx, e, func(ctx context.Context) ([]*leadscout.Product, error) {
				return e.Model.ExtractProducts(ctx, domain, e.Industry, b.Content)
			})
			if err != nil {
				return fmt.Errorf("product batch %d: %w", i+1, err)
			}
			products[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &leadscout.ExtractionResult{
		Domain:   domain,
		Profile:  MergeProfiles(domain, profiles),
		Products: MergeProducts(domain, products),
		Meta: leadscout.ExtractionMeta{
			Model:       e.Model.Model(),
			PageCount:   pageCount,
			BatchCount:  len(batches),
			ExtractedAt: time.Now().UTC(),
		},
	}
	if err := e.Results.SaveExtraction(ctx, result); err != nil {
		return nil, err
	}
	if e.Writer != nil {
		if err := e.Writer.WriteExtraction(ctx, result); err != nil {
			return nil, err
		}
	}
	if e.Domains != nil {
		at := result.Meta.ExtractedAt
		if _, err := e.Domains.UpdateDomain(ctx, domain, leadscout.DomainUpdate{ExtractedAt: &at}); err != nil {
			return nil, err
		}
	}
	e.logger().Info("extracted", "domain", domain, "products", len(result.Products))
	return result, nil
}

// Result is the extraction outcome of one domain in a batch run.
type Result struct {
	Domain   string `json:"domain"`
	Products int    `json:"products"`
	Err      error  `json:"-"`
}

// ExtractDomains extracts domains one after another. A failing domain is
// reported in its Result and does not stop the rest.
func (e *Extractor) ExtractDomains(ctx context.Context, domains []string) []Result {
	results := make([]Result, len(domains))
	for i, name := range domains {
		results[i].Domain = name
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		r, err := e.ExtractDomain(ctx, name)
		if err != nil {
			e.logger().Warn("extraction failed", "domain", name, "error", err)
			results[i].Err = err
			continue
		}
		results[i].Products = len(r.Products)
	}
	return results
}

// withRetry calls fn until it succeeds, retrying EMODEL and ETRANSIENT
// failures with growing delays. Each attempt runs under CallTimeout.
func withRetry[T any](ctx context.Context, e *Extractor, fn func(context.Context) (T, error)) (T, error) {
	delays := e.RetryDelays
	if delays == nil {
		delays = DefaultRetryDelays
	}
	retries := e.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 && len(delays) > 0 {
			if err := sleep(ctx, delays[min(attempt-1, len(delays)-1)]); err != nil {
				return zero, err
			}
		}
		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}
		v, err := leadscout.CallModel(ctx, e.CallTimeout, fn)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if code := leadscout.ErrorCode(err); code != leadscout.EMODEL && code != leadscout.ETRANSIENT {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
