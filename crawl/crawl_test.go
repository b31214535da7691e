package crawl_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/crawl"
	"github.com/fwojciec/leadscout/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

const root = "https://shop.example"

// fakeSite serves page bodies and their links. Extraction and conversion are
// identity functions, so a page's body is its markdown.
type fakeSite struct {
	mu      sync.Mutex
	bodies  map[string]string
	links   map[string][]string
	errs    map[string]error
	fetched []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		bodies: map[string]string{},
		links:  map[string][]string{},
		errs:   map[string]error{},
	}
}

func (s *fakeSite) page(url, body string, links ...string) {
	s.bodies[url] = body
	s.links[url] = links
}

func (s *fakeSite) fetchCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.fetched {
		if u == url {
			n++
		}
	}
	return n
}

func (s *fakeSite) fetcher() *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(ctx context.Context, url string) (string, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.fetched = append(s.fetched, url)
			if err, ok := s.errs[url]; ok {
				return "", err
			}
			body, ok := s.bodies[url]
			if !ok {
				return "", leadscout.Errorf(leadscout.EPERMANENT, "HTTP 404 for %s", url)
			}
			return body, nil
		},
	}
}

func (s *fakeSite) linkExtractor() *mock.LinkExtractor {
	return &mock.LinkExtractor{
		ExtractLinksFn: func(html, baseURL string) ([]string, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.links[baseURL], nil
		},
	}
}

// memStates is an in-memory CrawlStateService.
type memStates struct {
	mu     sync.Mutex
	states map[string]*leadscout.CrawlState
	saves  int
}

func newMemStates() *memStates {
	return &memStates{states: map[string]*leadscout.CrawlState{}}
}

func (m *memStates) get(domain string) *leadscout.CrawlState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[domain]
}

func (m *memStates) service() *mock.CrawlStateService {
	return &mock.CrawlStateService{
		LoadCrawlStateFn: func(_ context.Context, domain string) (*leadscout.CrawlState, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			st, ok := m.states[domain]
			if !ok {
				return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no state")
			}
			return st, nil
		},
		SaveCrawlStateFn: func(_ context.Context, st *leadscout.CrawlState) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.states[st.Domain] = st
			m.saves++
			return nil
		},
	}
}

// memPages is an in-memory PageService.
type memPages struct {
	mu    sync.Mutex
	pages []*leadscout.PageRecord
}

func (m *memPages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

func (m *memPages) urls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var urls []string
	for _, p := range m.pages {
		urls = append(urls, p.URL)
	}
	return urls
}

func (m *memPages) service() *mock.PageService {
	return &mock.PageService{
		CreatePageFn: func(_ context.Context, p *leadscout.PageRecord) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.pages = append(m.pages, p)
			return nil
		},
	}
}

// memDomains records crawl status updates.
type memDomains struct {
	mu      sync.Mutex
	updates []leadscout.DomainUpdate
}

func (m *memDomains) last() leadscout.DomainUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[len(m.updates)-1]
}

func (m *memDomains) service() *mock.DomainService {
	return &mock.DomainService{
		UpdateDomainFn: func(_ context.Context, name string, upd leadscout.DomainUpdate) (*leadscout.Domain, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.updates = append(m.updates, upd)
			return &leadscout.Domain{Name: name}, nil
		},
	}
}

type harness struct {
	site    *fakeSite
	states  *memStates
	pages   *memPages
	domains *memDomains
}

func newHarness() *harness {
	return &harness{
		site:    newFakeSite(),
		states:  newMemStates(),
		pages:   &memPages{},
		domains: &memDomains{},
	}
}

func (h *harness) crawler() *crawl.Crawler {
	return &crawl.Crawler{
		Fetcher: h.site.fetcher(),
		Links:   h.site.linkExtractor(),
		Extractor: &mock.ContentExtractor{
			ExtractFn: func(html string) (*leadscout.ExtractResult, error) {
				return &leadscout.ExtractResult{Title: "t", ContentHTML: html}, nil
			},
		},
		Converter: &mock.Converter{
			ConvertFn: func(html string) (string, error) { return html, nil },
		},
		Pages:       h.pages.service(),
		Domains:     h.domains.service(),
		Arena:       crawl.NewArena(h.states.service()),
		Pool:        semaphore.NewWeighted(8),
		Concurrency: 3,
		RetryDelays: []time.Duration{0, 0, 0},
	}
}

func TestCrawler_CrawlDomain(t *testing.T) {
	t.Parallel()

	t.Run("crawls breadth first within depth", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home", root+"/a", root+"/b", "https://other.example/x")
		h.site.page(root+"/a", "page a", root+"/c", root+"/manual.pdf")
		h.site.page(root+"/b", "page b", root+"/a/")
		h.site.page(root+"/c", "page c", root+"/d")
		h.site.page(root+"/d", "page d")

		c := h.crawler()
		c.MaxDepth = 2
		res, err := c.CrawlDomain(context.Background(), "shop.example")

		require.NoError(t, err)
		assert.Equal(t, leadscout.CrawlCompleted, res.Status)
		assert.Equal(t, 4, res.Stored)
		assert.Equal(t, []string{root, root + "/a", root + "/b", root + "/c"}, h.pages.urls())
		assert.Equal(t, 0, h.site.fetchCount(root+"/d"))
		assert.Equal(t, 0, h.site.fetchCount(root+"/manual.pdf"))
		assert.Equal(t, 0, h.site.fetchCount("https://other.example/x"))

		last := h.domains.last()
		require.NotNil(t, last.CrawlStatus)
		assert.Equal(t, leadscout.CrawlCompleted, *last.CrawlStatus)
		assert.Equal(t, 4, *last.CrawlPages)

		st := h.states.get("shop.example")
		require.NotNil(t, st)
		assert.True(t, st.Completed)
		assert.Empty(t, st.Frontier)
	})

	t.Run("re-crawling an unchanged site stores nothing", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home", root+"/a")
		h.site.page(root+"/a", "page a")
		c := h.crawler()

		_, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		require.Equal(t, 2, h.pages.count())

		res, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Pass)
		assert.Equal(t, 0, res.Stored)
		assert.Equal(t, 2, res.Skipped)
		assert.Equal(t, 2, h.pages.count())
		assert.Equal(t, leadscout.CrawlCompleted, res.Status)
	})

	t.Run("changed pages are stored again", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home", root+"/a")
		h.site.page(root+"/a", "price 10")
		c := h.crawler()

		_, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)

		h.site.mu.Lock()
		h.site.bodies[root+"/a"] = "price 12"
		h.site.mu.Unlock()

		res, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Stored)
		assert.Equal(t, 3, h.pages.count())
	})

	t.Run("identical content under another URL is skipped", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home", root+"/a", root+"/a-copy")
		h.site.page(root+"/a", "same body")
		h.site.page(root+"/a-copy", "same body")

		res, err := h.crawler().CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Stored)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 3, res.Fetched)
	})

	t.Run("resumes from the last checkpoint", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home", root+"/a", root+"/b")
		h.site.page(root+"/a", "page a")
		h.site.page(root+"/b", "page b")
		h.states.states["shop.example"] = &leadscout.CrawlState{
			Domain:        "shop.example",
			Pass:          1,
			Visited:       []string{root, root + "/a"},
			Frontier:      []leadscout.FrontierEntry{{URL: root + "/b", Depth: 1}},
			URLHashes:     map[string]string{root: leadscout.HashContent("home"), root + "/a": leadscout.HashContent("page a")},
			ContentHashes: []string{leadscout.HashContent("home"), leadscout.HashContent("page a")},
		}

		res, err := h.crawler().CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Pass)
		assert.Equal(t, []string{root + "/b"}, h.pages.urls())
		assert.Equal(t, 0, h.site.fetchCount(root))
		assert.Equal(t, 0, h.site.fetchCount(root+"/a"))
		assert.Len(t, h.states.get("shop.example").Visited, 3)
	})

	t.Run("respects the page budget across a resume", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		var links []string
		for _, p := range []string{"/1", "/2", "/3", "/4", "/5", "/6"} {
			links = append(links, root+p)
			h.site.page(root+p, "body "+p)
		}
		h.site.page(root, "home", links...)

		c := h.crawler()
		c.MaxPages = 3
		_, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 3, h.pages.count())
	})

	t.Run("refuses to start from corrupt state", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		svc := h.states.service()
		svc.LoadCrawlStateFn = func(context.Context, string) (*leadscout.CrawlState, error) {
			return nil, leadscout.Errorf(leadscout.ECORRUPT, "bad checkpoint")
		}
		c := h.crawler()
		c.Arena = crawl.NewArena(svc)

		_, err := c.CrawlDomain(context.Background(), "shop.example")
		assert.Equal(t, leadscout.ECORRUPT, leadscout.ErrorCode(err))
		assert.Empty(t, h.site.fetched)

		last := h.domains.last()
		assert.Nil(t, last.CrawlStatus)
		assert.Contains(t, *last.FailureReason, "bad checkpoint")
	})

	t.Run("does not fetch robots-disallowed URLs", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home", root+"/cart")
		h.site.page(root+"/cart", "cart")
		c := h.crawler()
		c.Robots = &mock.RobotsPolicy{
			AllowedFn: func(_ context.Context, url string) (bool, error) {
				return url != root+"/cart", nil
			},
		}

		res, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 0, res.Failed)
		assert.Equal(t, 1, res.Disallowed)
		assert.Equal(t, 0, h.site.fetchCount(root+"/cart"))

		st := h.states.get("shop.example")
		assert.Empty(t, st.Failed)
		assert.Equal(t, []string{root}, st.Visited)
	})

	t.Run("disallowed links neither fail the crawl nor spend the budget", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		var links []string
		for i := range 12 {
			links = append(links, fmt.Sprintf("%s/account%d", root, i))
		}
		links = append(links, root+"/products/gloves")
		h.site.page(root, "home", links...)
		h.site.page(root+"/products/gloves", "gloves")

		c := h.crawler()
		c.Concurrency = 1
		c.MaxPages = 2
		c.MaxConsecutiveFailures = 10
		c.Robots = &mock.RobotsPolicy{
			AllowedFn: func(_ context.Context, url string) (bool, error) {
				return !strings.Contains(url, "/account"), nil
			},
		}

		res, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, leadscout.CrawlCompleted, res.Status)
		assert.Equal(t, 12, res.Disallowed)
		assert.Equal(t, 0, res.Failed)
		assert.Equal(t, 2, res.Stored)
		assert.Equal(t, 1, h.site.fetchCount(root+"/products/gloves"))
		assert.Equal(t, 2, *h.domains.last().CrawlPages)
	})

	t.Run("robots Crawl-delay sets the domain's pacing floor", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home")
		th := crawl.NewThrottle(time.Millisecond, 5*time.Millisecond)
		var asked string
		c := h.crawler()
		c.Limiter = th
		c.Robots = &delayedRobots{
			CrawlDelayFn: func(_ context.Context, url string) (time.Duration, error) {
				asked = url
				return 30 * time.Millisecond, nil
			},
		}

		_, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, root, asked)
		assert.Equal(t, 30*time.Millisecond, th.Delay("shop.example"))
	})

	t.Run("a failed Crawl-delay lookup does not stop the crawl", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home")
		th := crawl.NewThrottle(time.Millisecond, 5*time.Millisecond)
		c := h.crawler()
		c.Limiter = th
		c.Robots = &delayedRobots{
			CrawlDelayFn: func(context.Context, string) (time.Duration, error) {
				return 0, leadscout.Errorf(leadscout.ETRANSIENT, "robots.txt unreachable")
			},
		}

		res, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, leadscout.CrawlCompleted, res.Status)
		assert.LessOrEqual(t, th.Delay("shop.example"), 5*time.Millisecond)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		var calls atomic.Int32
		c := h.crawler()
		c.Fetcher = &mock.Fetcher{
			FetchFn: func(context.Context, string) (string, error) {
				if calls.Add(1) < 3 {
					return "", leadscout.Errorf(leadscout.ETRANSIENT, "HTTP 503")
				}
				return "home", nil
			},
		}

		res, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Stored)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("aborts after too many consecutive failures", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		var links []string
		for _, p := range []string{"/1", "/2", "/3", "/4"} {
			links = append(links, root+p)
			h.site.errs[root+p] = leadscout.Errorf(leadscout.EPERMANENT, "HTTP 500")
		}
		h.site.page(root, "home", links...)

		c := h.crawler()
		c.Concurrency = 1
		c.MaxConsecutiveFailures = 2

		res, err := c.CrawlDomain(context.Background(), "shop.example")
		require.Error(t, err)
		assert.Equal(t, leadscout.CrawlFailed, res.Status)

		last := h.domains.last()
		assert.Equal(t, leadscout.CrawlFailed, *last.CrawlStatus)
		assert.Contains(t, *last.FailureReason, "2 consecutive failures")
		assert.False(t, h.states.get("shop.example").Completed)
	})

	t.Run("cancellation checkpoints in-flight URLs", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		ctx, cancel := context.WithCancel(context.Background())
		c := h.crawler()
		c.Fetcher = &mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) (string, error) {
				cancel()
				<-ctx.Done()
				return "", ctx.Err()
			},
		}

		res, err := c.CrawlDomain(ctx, "shop.example")
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, leadscout.CrawlQueued, res.Status)

		st := h.states.get("shop.example")
		require.NotNil(t, st)
		assert.Equal(t, []leadscout.FrontierEntry{{URL: root, Depth: 0}}, st.Frontier)
		assert.Empty(t, st.Visited)
		assert.Empty(t, st.Failed)
	})

	t.Run("concurrent calls share one crawl", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		started := make(chan struct{})
		release := make(chan struct{})
		var calls atomic.Int32
		c := h.crawler()
		c.Fetcher = &mock.Fetcher{
			FetchFn: func(context.Context, string) (string, error) {
				if calls.Add(1) == 1 {
					close(started)
				}
				<-release
				return "home", nil
			},
		}

		results := make([]*crawl.Result, 2)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[0], _ = c.CrawlDomain(context.Background(), "shop.example")
		}()
		<-started
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[1], _ = c.CrawlDomain(context.Background(), "shop.example")
		}()
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		assert.Same(t, results[0], results[1])
		assert.Equal(t, 1, h.pages.count())
	})

	t.Run("seeds from sitemaps", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.site.page(root, "home")
		h.site.page(root+"/products/gloves", "gloves")
		c := h.crawler()
		c.Sitemaps = &mock.SitemapService{
			DiscoverURLsFn: func(_ context.Context, baseURL string) ([]string, error) {
				assert.Equal(t, root, baseURL)
				return []string{root + "/products/gloves/", "https://cdn.other.example/img.png"}, nil
			},
		}

		res, err := c.CrawlDomain(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Stored)
		assert.Equal(t, 1, h.site.fetchCount(root+"/products/gloves"))
	})
}

func TestCrawler_CrawlDomains(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.site.page(root, "home")
	h.site.page("https://other.example", "other home")
	c := h.crawler()
	c.RootURL = func(domain string) string {
		if domain == "broken.example" {
			return "::not a url"
		}
		return "https://" + domain
	}

	results, err := c.CrawlDomains(context.Background(), []string{"shop.example", "other.example", "broken.example"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Stored)
	assert.Equal(t, 1, results[1].Stored)
	assert.Equal(t, 0, results[2].Stored)
	assert.Equal(t, leadscout.CrawlCompleted, results[2].Status)
}

// delayedRobots allows every URL and reports a Crawl-delay.
type delayedRobots struct {
	CrawlDelayFn func(ctx context.Context, url string) (time.Duration, error)
}

func (r *delayedRobots) Allowed(context.Context, string) (bool, error) { return true, nil }

func (r *delayedRobots) CrawlDelay(ctx context.Context, url string) (time.Duration, error) {
	return r.CrawlDelayFn(ctx, url)
}
