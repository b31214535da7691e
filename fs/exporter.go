package fs

import (
	"cmp"
	"compress/gzip"
	"context"
	"io"
	"path/filepath"
	"slices"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/extract"
)

// Export file layout under the data directory.
const (
	DomainsFile   = "discovered_domains.jsonl"
	VettingsFile  = "vetting_decisions.jsonl"
	CrawlStateDir = "crawl_state"
	PagesDir      = "pages"
	CompaniesDir  = "companies"
	IndexesDir    = "indexes"
)

var _ extract.ResultWriter = (*Exporter)(nil)

// Exporter writes pipeline state as JSON files under a base directory.
// Every file is replaced atomically, so readers never see a partial export.
type Exporter struct {
	baseDir string
}

// NewExporter creates an Exporter rooted at baseDir.
func NewExporter(baseDir string) *Exporter {
	return &Exporter{baseDir: baseDir}
}

// Dir returns the base directory.
func (e *Exporter) Dir() string { return e.baseDir }

// WriteDomains writes discovered_domains.jsonl ordered by name.
func (e *Exporter) WriteDomains(_ context.Context, domains []*leadscout.Domain) error {
	sorted := slices.Clone(domains)
	slices.SortFunc(sorted, func(a, b *leadscout.Domain) int { return cmp.Compare(a.Name, b.Name) })
	return writeFile(filepath.Join(e.baseDir, DomainsFile), func(w io.Writer) error {
		return writeJSONL(w, sorted)
	})
}

// WriteVettings writes vetting_decisions.jsonl in record order.
func (e *Exporter) WriteVettings(_ context.Context, records []*leadscout.VettingRecord) error {
	return writeFile(filepath.Join(e.baseDir, VettingsFile), func(w io.Writer) error {
		return writeJSONL(w, records)
	})
}

// WriteCrawlState writes crawl_state/<domain>.json.
func (e *Exporter) WriteCrawlState(_ context.Context, state *leadscout.CrawlState) error {
	name, err := domainPath(state.Domain)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(e.baseDir, CrawlStateDir, name+".json"), func(w io.Writer) error {
		return writeJSON(w, state)
	})
}

// WritePages writes pages/<domain>.jsonl.gz.
func (e *Exporter) WritePages(_ context.Context, domain string, pages []*leadscout.PageRecord) error {
	name, err := domainPath(domain)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(e.baseDir, PagesDir, name+".jsonl.gz"), func(w io.Writer) error {
		zw := gzip.NewWriter(w)
		if err := writeJSONL(zw, pages); err != nil {
			return err
		}
		return zw.Close()
	})
}

// WriteExtraction replaces companies/<domain>/ with profile.json,
// products.jsonl and metadata.json.
func (e *Exporter) WriteExtraction(_ context.Context, result *leadscout.ExtractionResult) (err error) {
	name, err := domainPath(result.Domain)
	if err != nil {
		return err
	}
	st, err := newStage(filepath.Join(e.baseDir, CompaniesDir, name))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			st.Abort()
		}
	}()

	if err := writeFile(st.path("profile.json"), func(w io.Writer) error {
		return writeJSON(w, result.Profile)
	}); err != nil {
		return err
	}
	if err := writeFile(st.path("products.jsonl"), func(w io.Writer) error {
		return writeJSONL(w, result.Products)
	}); err != nil {
		return err
	}
	if err := writeFile(st.path("metadata.json"), func(w io.Writer) error {
		return writeJSON(w, metadata{
			Domain:         result.Domain,
			ExtractionMeta: result.Meta,
			ProductCount:   len(result.Products),
		})
	}); err != nil {
		return err
	}
	return st.Commit()
}

type metadata struct {
	Domain string `json:"domain"`
	leadscout.ExtractionMeta
	ProductCount int `json:"productCount"`
}

// WriteIndexes writes indexes/all_companies.jsonl and
// indexes/all_products.jsonl across every result, ordered by domain.
func (e *Exporter) WriteIndexes(_ context.Context, results []*leadscout.ExtractionResult) error {
	sorted := slices.Clone(results)
	slices.SortFunc(sorted, func(a, b *leadscout.ExtractionResult) int { return cmp.Compare(a.Domain, b.Domain) })

	var profiles []*leadscout.CompanyProfile
	var products []*leadscout.Product
	for _, r := range sorted {
		if r.Profile != nil {
			profiles = append(profiles, r.Profile)
		}
		products = append(products, r.Products...)
	}

	if err := writeFile(filepath.Join(e.baseDir, IndexesDir, "all_companies.jsonl"), func(w io.Writer) error {
		return writeJSONL(w, profiles)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(e.baseDir, IndexesDir, "all_products.jsonl"), func(w io.Writer) error {
		return writeJSONL(w, products)
	})
}
