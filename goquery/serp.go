package goquery

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/leadscout"
)

var _ leadscout.SearchEngine = (*SearchEngine)(nil)

// resultsPerPage is the organic result count assumed per results page when
// computing ranks.
const resultsPerPage = 10

// SearchSpec describes how to query a web search engine and parse its
// results page.
type SearchSpec struct {
	Name string
	// URL builds the results page URL for a query and 0-based page.
	URL func(query string, page int) string
	// Result selects each organic result container.
	Result string
	// Link, Title and Snippet are evaluated inside a result container.
	Link    string
	Title   string
	Snippet string
	// Hosts lists the engine's own hosts; links to them are not results.
	Hosts []string
}

// Google scrapes google.com result pages.
var Google = SearchSpec{
	Name: "google",
	URL: func(q string, page int) string {
		return "https://www.google.com/search?q=" + url.QueryEscape(q) +
			"&num=10&start=" + strconv.Itoa(page*resultsPerPage)
	},
	Result:  "div.g, div[data-sokoban-container]",
	Link:    "a[href]",
	Title:   "h3",
	Snippet: "div.VwiC3b, div.IsZvec, span.aCOpRe",
	Hosts:   []string{"google.com"},
}

// Bing scrapes bing.com result pages.
var Bing = SearchSpec{
	Name: "bing",
	URL: func(q string, page int) string {
		return "https://www.bing.com/search?q=" + url.QueryEscape(q) +
			"&count=10&first=" + strconv.Itoa(page*resultsPerPage+1)
	},
	Result:  "li.b_algo",
	Link:    "h2 a",
	Title:   "h2",
	Snippet: ".b_caption p, p",
	Hosts:   []string{"bing.com", "microsoft.com"},
}

// Brave scrapes search.brave.com result pages.
var Brave = SearchSpec{
	Name: "brave",
	URL: func(q string, page int) string {
		return "https://search.brave.com/search?source=web&q=" + url.QueryEscape(q) +
			"&offset=" + strconv.Itoa(page)
	},
	Result:  "#results .snippet",
	Link:    "a[href]",
	Title:   ".title",
	Snippet: ".snippet-description, .generic-snippet",
	Hosts:   []string{"brave.com"},
}

// DuckDuckGo scrapes the JavaScript-free html.duckduckgo.com endpoint.
var DuckDuckGo = SearchSpec{
	Name: "duckduckgo",
	URL: func(q string, page int) string {
		u := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(q)
		if page > 0 {
			u += "&s=" + strconv.Itoa(page*30) + "&dc=" + strconv.Itoa(page*30+1)
		}
		return u
	},
	Result:  "div.result:not(.result--ad)",
	Link:    "a.result__a",
	Title:   "a.result__a",
	Snippet: ".result__snippet",
	Hosts:   []string{"duckduckgo.com"},
}

// Specs returns the built-in search specs by name.
func Specs() map[string]SearchSpec {
	return map[string]SearchSpec{
		Google.Name:     Google,
		Bing.Name:       Bing,
		Brave.Name:      Brave,
		DuckDuckGo.Name: DuckDuckGo,
	}
}

// challengeMarkers are lowercase substrings of bot-challenge pages.
var challengeMarkers = []string{
	"unusual traffic",
	"are you a robot",
	"not a robot",
	"verify you are human",
	"captcha",
	"/sorry/index",
	"cf-challenge",
	"challenge-form",
}

// DetectChallenge reports whether html is an automation challenge page
// rather than a results page.
func DetectChallenge(html string) bool {
	lower := strings.ToLower(html)
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// SearchEngine issues queries through a Fetcher and parses results pages
// with a SearchSpec. Pair it with a browser fetcher for engines that
// render results with JavaScript.
type SearchEngine struct {
	spec    SearchSpec
	fetcher leadscout.Fetcher
}

// NewSearchEngine creates a SearchEngine.
func NewSearchEngine(spec SearchSpec, fetcher leadscout.Fetcher) *SearchEngine {
	return &SearchEngine{spec: spec, fetcher: fetcher}
}

// Name returns the engine name.
func (e *SearchEngine) Name() string {
	return e.spec.Name
}

// Search fetches one results page. Returns ECHALLENGE when the engine
// answers with a bot challenge instead of results.
func (e *SearchEngine) Search(ctx context.Context, query string, page int) ([]leadscout.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "query required")
	}
	html, err := e.fetcher.Fetch(ctx, e.spec.URL(query, page))
	if err != nil {
		return nil, err
	}
	return e.Parse(html, page)
}

// Parse extracts organic results from a results page.
func (e *SearchEngine) Parse(html string, page int) ([]leadscout.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, leadscout.Errorf(leadscout.EINVALID, "failed to parse %s results: %v", e.spec.Name, err)
	}

	var results []leadscout.SearchResult
	seen := make(map[string]struct{})
	doc.Find(e.spec.Result).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Find(e.spec.Link).First().Attr("href")
		if !ok {
			return
		}
		target := e.unwrap(href)
		if target == "" {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}

		title := collapse(sel.Find(e.spec.Title).First().Text())
		if title == "" {
			title = collapse(sel.Find(e.spec.Link).First().Text())
		}
		results = append(results, leadscout.SearchResult{
			URL:     target,
			Title:   title,
			Snippet: collapse(sel.Find(e.spec.Snippet).First().Text()),
			Rank:    page*resultsPerPage + len(results) + 1,
		})
	})

	if len(results) == 0 && DetectChallenge(html) {
		return nil, leadscout.Errorf(leadscout.ECHALLENGE, "%s presented a bot challenge", e.spec.Name)
	}
	return results, nil
}

// unwrap resolves engine redirect links to their target and drops links that
// point back at the engine.
func (e *SearchEngine) unwrap(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	q := u.Query()
	switch {
	case u.Path == "/url" && q.Get("q") != "":
		return e.unwrap(q.Get("q"))
	case u.Path == "/url" && q.Get("url") != "":
		return e.unwrap(q.Get("url"))
	case strings.HasPrefix(u.Path, "/l/") && q.Get("uddg") != "":
		return e.unwrap(q.Get("uddg"))
	}

	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range e.spec.Hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return ""
		}
	}
	u.Fragment = ""
	return u.String()
}
