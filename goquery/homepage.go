package goquery

import (
	"context"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
)

var _ leadscout.HomepageProbe = (*HomepageProbe)(nil)

const (
	// shingleSize is the number of consecutive element tokens per shingle.
	shingleSize = 4
	// maxTemplateTokens bounds the element sequence read from large pages.
	maxTemplateTokens = 3000
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// socialHosts maps social network hosts to network names.
var socialHosts = map[string]string{
	"facebook.com":  "facebook",
	"instagram.com": "instagram",
	"linkedin.com":  "linkedin",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"youtube.com":   "youtube",
	"tiktok.com":    "tiktok",
	"pinterest.com": "pinterest",
}

// HomepageProbe fetches a homepage and parses the features used to compare
// sites for duplication.
type HomepageProbe struct {
	Fetcher leadscout.Fetcher
	// RootURL maps a domain to its homepage URL. Defaults to https://<domain>.
	RootURL func(domain string) string
}

// NewHomepageProbe creates a probe that fetches with f.
func NewHomepageProbe(f leadscout.Fetcher) *HomepageProbe {
	return &HomepageProbe{Fetcher: f}
}

// Features fetches the homepage of domain and parses its features.
func (p *HomepageProbe) Features(ctx context.Context, domain string) (*leadscout.HomepageFeatures, error) {
	root := publicsuffix.Root(domain)
	if p.RootURL != nil {
		root = p.RootURL(domain)
	}
	html, err := p.Fetcher.Fetch(ctx, root)
	if err != nil {
		return nil, err
	}
	f, err := ParseHomepage(html)
	if err != nil {
		return nil, err
	}
	f.Domain = domain
	return f, nil
}

// ParseHomepage extracts homepage features from html.
func ParseHomepage(html string) (*leadscout.HomepageFeatures, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, leadscout.Errorf(leadscout.EINVALID, "failed to parse HTML: %v", err)
	}

	title := collapse(doc.Find("title").First().Text())
	description := metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`)

	return &leadscout.HomepageFeatures{
		Title:       title,
		Description: description,
		CompanyName: companyName(doc, title),
		Emails:      emails(doc),
		Socials:     socials(doc),
		Shingles:    templateShingles(doc),
	}, nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v := collapse(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}

// companyName prefers explicit site names, then the last title segment.
func companyName(doc *goquery.Document, title string) string {
	if name := metaContent(doc, `meta[property="og:site_name"]`, `meta[name="application-name"]`); name != "" {
		return name
	}
	for _, sep := range []string{" | ", " – ", " — ", " - ", " · "} {
		if i := strings.LastIndex(title, sep); i != -1 {
			return strings.TrimSpace(title[i+len(sep):])
		}
	}
	return title
}

func emails(doc *goquery.Document) []string {
	set := make(map[string]struct{})
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		addr, _, _ := strings.Cut(strings.TrimPrefix(href, "mailto:"), "?")
		if emailPattern.MatchString(addr) {
			set[strings.ToLower(strings.TrimSpace(addr))] = struct{}{}
		}
	})
	for _, m := range emailPattern.FindAllString(doc.Find("body").Text(), -1) {
		set[strings.ToLower(m)] = struct{}{}
	}
	return sortedKeys(set)
}

// socials returns "network:handle" pairs for linked social profiles.
func socials(doc *goquery.Document) []string {
	set := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || u.Host == "" {
			return
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		network, ok := socialHosts[host]
		if !ok {
			return
		}
		segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
		if len(segments) == 0 {
			return
		}
		handle := segments[0]
		if (handle == "company" || handle == "in" || handle == "user" || handle == "c") && len(segments) > 1 {
			handle = segments[1]
		}
		handle = strings.ToLower(strings.TrimPrefix(handle, "@"))
		set[network+":"+handle] = struct{}{}
	})
	return sortedKeys(set)
}

// templateShingles fingerprints page structure as shingles over the sequence
// of body elements, each written as tag or tag.firstclass.
func templateShingles(doc *goquery.Document) []string {
	var tokens []string
	doc.Find("body *").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		tag := goquery.NodeName(sel)
		if tag == "script" || tag == "style" || tag == "noscript" || tag == "svg" || tag == "path" {
			return true
		}
		token := tag
		if classes := strings.Fields(sel.AttrOr("class", "")); len(classes) > 0 {
			token += "." + strings.ToLower(classes[0])
		}
		tokens = append(tokens, token)
		return len(tokens) < maxTemplateTokens
	})

	set := make(map[string]struct{})
	if len(tokens) > 0 && len(tokens) < shingleSize {
		set[strings.Join(tokens, ">")] = struct{}{}
	}
	for i := 0; i+shingleSize <= len(tokens); i++ {
		set[strings.Join(tokens[i:i+shingleSize], ">")] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
