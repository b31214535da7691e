package main_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/leadscout"
	main "github.com/fwojciec/leadscout/cmd/leadscout"
	"github.com/fwojciec/leadscout/fs"
	"github.com/fwojciec/leadscout/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCmd_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stdout := &bytes.Buffer{}
	deps := &main.Dependencies{
		Ctx:    context.Background(),
		Stdout: stdout,
		Domains: domainStore(
			&leadscout.Domain{Name: "keeperpro.com", VetState: leadscout.VetAccepted, CrawlStatus: leadscout.CrawlCompleted},
			&leadscout.Domain{Name: "news.example", VetState: leadscout.VetRejected, CrawlStatus: leadscout.CrawlNotStarted},
		),
		Vettings: &mock.VettingService{
			FindVettingsFn: func(context.Context) ([]*leadscout.VettingRecord, error) {
				return []*leadscout.VettingRecord{{Domain: "keeperpro.com", Stage: leadscout.StageRule, Decision: leadscout.DecisionAccept}}, nil
			},
		},
		CrawlStates: &mock.CrawlStateService{
			LoadCrawlStateFn: func(_ context.Context, domain string) (*leadscout.CrawlState, error) {
				if domain != "keeperpro.com" {
					return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no crawl state for %s", domain)
				}
				return &leadscout.CrawlState{Domain: domain, Pass: 1, Completed: true}, nil
			},
		},
		Pages: &mock.PageService{
			FindPagesFn: func(_ context.Context, filter leadscout.PageFilter) ([]*leadscout.PageRecord, error) {
				return []*leadscout.PageRecord{
					{ID: "1", Domain: *filter.Domain, URL: "https://keeperpro.com/", Content: "# KeeperPro", FetchedAt: time.Now()},
				}, nil
			},
		},
		Extractions: &mock.ExtractionService{
			FindExtractionsFn: func(context.Context, leadscout.ExtractionFilter) ([]*leadscout.ExtractionResult, error) {
				return []*leadscout.ExtractionResult{{
					Domain:   "keeperpro.com",
					Profile:  &leadscout.CompanyProfile{Domain: "keeperpro.com", Company: "KeeperPro"},
					Products: []*leadscout.Product{{Domain: "keeperpro.com", Name: "Grip Pro"}},
				}}, nil
			},
		},
		Exporter: fs.NewExporter(filepath.Join(dir, "unused")),
	}

	err := (&main.ExportCmd{Dir: dir}).Run(deps)
	require.NoError(t, err)

	for _, name := range []string{
		fs.DomainsFile,
		fs.VettingsFile,
		filepath.Join(fs.CrawlStateDir, "keeperpro.com.json"),
		filepath.Join(fs.PagesDir, "keeperpro.com.jsonl.gz"),
		filepath.Join(fs.CompaniesDir, "keeperpro.com", "profile.json"),
		filepath.Join(fs.IndexesDir, "all_products.jsonl"),
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	assert.NoDirExists(t, filepath.Join(dir, "unused"))
	assert.Contains(t, stdout.String(), "exported 2 domains, 1 vetting records, 1 crawl states, 1 pages, 1 companies")
}
