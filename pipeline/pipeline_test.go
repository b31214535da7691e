package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/crawl"
	"github.com/fwojciec/leadscout/dedup"
	"github.com/fwojciec/leadscout/discover"
	"github.com/fwojciec/leadscout/extract"
	"github.com/fwojciec/leadscout/index"
	"github.com/fwojciec/leadscout/mock"
	"github.com/fwojciec/leadscout/pipeline"
	"github.com/fwojciec/leadscout/vet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discoverer struct {
	accepted []string
	queries  []string
	limit    int
}

func (d *discoverer) RunLimit(_ context.Context, queries []string, maxResults int) (*discover.Report, error) {
	d.queries = queries
	d.limit = maxResults
	return &discover.Report{Candidates: len(d.accepted), Accepted: d.accepted}, nil
}

type deduper struct{ duplicates map[string]bool }

func (d *deduper) CheckDomains(_ context.Context, domains []string) []dedup.Result {
	var out []dedup.Result
	for _, name := range domains {
		decision := leadscout.DedupNew
		if d.duplicates[name] {
			decision = leadscout.DedupDuplicate
		}
		out = append(out, dedup.Result{Domain: name, Record: &leadscout.DedupRecord{Candidate: name, Decision: decision}})
	}
	return out
}

type vetter struct {
	states map[string]leadscout.VetState
	seen   []string
}

func (v *vetter) VetDomains(_ context.Context, names []string) ([]*vet.Outcome, error) {
	v.seen = names
	var out []*vet.Outcome
	for _, name := range names {
		out = append(out, &vet.Outcome{Domain: name, State: v.states[name]})
	}
	return out, nil
}

type crawler struct {
	failing  map[string]bool
	seen     []string
	parallel int
}

func (c *crawler) CrawlDomains(_ context.Context, domains []string, parallel int) ([]*crawl.Result, error) {
	c.seen = domains
	c.parallel = parallel
	var out []*crawl.Result
	for _, name := range domains {
		r := &crawl.Result{Domain: name, Status: leadscout.CrawlCompleted}
		if c.failing[name] {
			r.Err = leadscout.Errorf(leadscout.EPERMANENT, "unreachable")
		}
		out = append(out, r)
	}
	return out, nil
}

type extractor struct{ seen []string }

func (e *extractor) ExtractDomains(_ context.Context, domains []string) []extract.Result {
	e.seen = domains
	var out []extract.Result
	for _, name := range domains {
		out = append(out, extract.Result{Domain: name, Products: 2})
	}
	return out
}

type indexer struct{ seen []string }

func (x *indexer) IndexDomains(_ context.Context, domains []string, force bool) []index.Result {
	x.seen = domains
	var out []index.Result
	for _, name := range domains {
		out = append(out, index.Result{Domain: name, Stats: &index.Stats{}})
	}
	return out
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	t.Run("each stage receives the survivors of the previous one", func(t *testing.T) {
		t.Parallel()

		d := &discoverer{accepted: []string{"a.com", "b.com", "c.com", "d.com"}}
		v := &vetter{states: map[string]leadscout.VetState{
			"a.com": leadscout.VetAccepted,
			"c.com": leadscout.VetAccepted,
			"d.com": leadscout.VetRejected,
		}}
		c := &crawler{failing: map[string]bool{"c.com": true}}
		e := &extractor{}
		x := &indexer{}
		r := &pipeline.Runner{
			Discovery: d,
			Dedup:     &deduper{duplicates: map[string]bool{"b.com": true}},
			Vetter:    v,
			Crawler:   c,
			Extractor: e,
			Indexer:   x,
		}

		var progress []string
		rep, err := r.Run(context.Background(), pipeline.Trigger{
			Industry:   "goalkeeper gloves",
			Plan:       discover.Plan{Seeds: []string{"goalkeeper gloves"}},
			MaxResults: 10,
		}, func(p string) { progress = append(progress, p) })
		require.NoError(t, err)

		assert.NotEmpty(t, d.queries)
		assert.Equal(t, 10, d.limit)
		assert.Equal(t, []string{"a.com", "c.com", "d.com"}, v.seen)
		assert.Equal(t, []string{"a.com", "c.com"}, c.seen)
		assert.Equal(t, pipeline.DefaultCrawlParallelism, c.parallel)
		assert.Equal(t, []string{"a.com"}, e.seen)
		assert.Equal(t, []string{"a.com"}, x.seen)

		assert.Equal(t, []string{"b.com"}, rep.Duplicates)
		assert.Equal(t, []string{"a.com", "c.com"}, rep.Accepted)
		assert.Equal(t, []string{"a.com"}, rep.Indexed)
		assert.Equal(t, map[string]string{"c.com": "crawl: unreachable"}, rep.Failures)
		assert.Len(t, progress, 6)
	})

	t.Run("skipping discovery starts from undecided domains", func(t *testing.T) {
		t.Parallel()

		domains := &mock.DomainService{
			FindDomainsFn: func(_ context.Context, f leadscout.DomainFilter) ([]*leadscout.Domain, error) {
				switch *f.VetState {
				case leadscout.VetUnvetted:
					return []*leadscout.Domain{{Name: "z.com"}}, nil
				case leadscout.VetUnclear:
					return []*leadscout.Domain{{Name: "m.com"}}, nil
				}
				return nil, nil
			},
		}
		v := &vetter{}
		r := &pipeline.Runner{Domains: domains, Vetter: v}

		rep, err := r.Run(context.Background(), pipeline.Trigger{SkipDiscovery: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"m.com", "z.com"}, v.seen)
		assert.Equal(t, []string{"m.com", "z.com"}, rep.Candidates)
		assert.Empty(t, rep.Accepted)
	})

	t.Run("explicit domains bypass discovery", func(t *testing.T) {
		t.Parallel()

		v := &vetter{states: map[string]leadscout.VetState{"a.com": leadscout.VetAccepted}}
		r := &pipeline.Runner{Vetter: v}

		rep, err := r.Run(context.Background(), pipeline.Trigger{SkipDiscovery: true, Domains: []string{"a.com"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.com"}, rep.Accepted)
	})

	t.Run("requires seeds for discovery", func(t *testing.T) {
		t.Parallel()

		_, err := (&pipeline.Runner{}).Run(context.Background(), pipeline.Trigger{Industry: "x"}, nil)
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
	})

	t.Run("canceled run returns the context error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := &pipeline.Runner{Vetter: &vetter{}}

		rep, err := r.Run(ctx, pipeline.Trigger{SkipDiscovery: true, Domains: []string{"a.com"}}, nil)
		assert.True(t, errors.Is(err, context.Canceled))
		require.NotNil(t, rep)
	})
}

func TestTrigger_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		trigger pipeline.Trigger
		wantErr bool
	}{
		{"seeds", pipeline.Trigger{Plan: discover.Plan{Seeds: []string{"x"}}}, false},
		{"skip discovery", pipeline.Trigger{SkipDiscovery: true}, false},
		{"no seeds", pipeline.Trigger{}, true},
		{"negative limit", pipeline.Trigger{SkipDiscovery: true, MaxPages: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.trigger.Validate()
			if tt.wantErr {
				assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
