package http

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/temoto/robotstxt"
)

var _ leadscout.RobotsPolicy = (*RobotsPolicy)(nil)

// RobotsPolicy answers robots.txt questions, fetching each host's file once.
// A robots.txt that cannot be fetched at all is treated as allowing
// everything; a 5xx answer disallows everything, following Google's rules.
type RobotsPolicy struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsPolicy creates a RobotsPolicy. If client is nil a client with
// DefaultFetchTimeout is used.
func NewRobotsPolicy(client *http.Client, userAgent string) *RobotsPolicy {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &RobotsPolicy{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether robots.txt for the URL's host permits fetching it.
func (p *RobotsPolicy) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false, leadscout.Errorf(leadscout.EINVALID, "invalid URL %q", rawURL)
	}

	data, err := p.robots(ctx, u)
	if err != nil {
		return false, err
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, p.userAgent), nil
}

// CrawlDelay returns the Crawl-delay declared for the crawler's user agent,
// or zero when there is none.
func (p *RobotsPolicy) CrawlDelay(ctx context.Context, rawURL string) (time.Duration, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0, leadscout.Errorf(leadscout.EINVALID, "invalid URL %q", rawURL)
	}
	data, err := p.robots(ctx, u)
	if err != nil {
		return 0, err
	}
	if g := data.FindGroup(p.userAgent); g != nil {
		return g.CrawlDelay, nil
	}
	return 0, nil
}

func (p *RobotsPolicy) robots(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	key := u.Scheme + "://" + u.Host

	p.mu.Lock()
	data, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := fetchRobots(ctx, p.client, p.userAgent, key)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[key] = data
	p.mu.Unlock()
	return data, nil
}

// fetchRobots retrieves and parses robots.txt under root. Network failures
// and unparseable files yield an allow-all policy; only context errors are
// returned.
func fetchRobots(ctx context.Context, client *http.Client, userAgent, root string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/robots.txt", nil)
	if err != nil {
		return nil, leadscout.Errorf(leadscout.EINVALID, "robots request for %s: %v", root, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return allowAll(), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return allowAll(), nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return allowAll(), nil
	}
	return data, nil
}

func allowAll() *robotstxt.RobotsData {
	data, _ := robotstxt.FromString("")
	return data
}
