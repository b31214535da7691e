package dedup

import (
	"net/url"
	"slices"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
)

// Brand tiers of the pattern score.
const (
	TierSameBrand  = 0.40
	TierNormalized = 0.35
	TierEditTwo    = 0.30
	TierContains   = 0.25
)

// brandSuffixes are stripped from the end of a registrable name to get the
// brand.
var brandSuffixes = []string{"store", "shop", "direct", "global", "official", "online"}

// minContainment is the shortest brand that counts in containment checks.
const minContainment = 4

// Label returns the registrable name of a domain without its public suffix
// and separators: "keeper-pro.co.uk" gives "keeperpro".
func Label(domain string) string {
	d, err := publicsuffix.Domain(domain)
	if err != nil {
		d = strings.ToLower(domain)
	}
	label, _, _ := strings.Cut(d, ".")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, label)
}

// Brand returns the label with shop-like suffixes removed:
// "keeperprostore.com" gives "keeperpro".
func Brand(domain string) string {
	b := Label(domain)
	for changed := true; changed; {
		changed = false
		for _, s := range brandSuffixes {
			if len(b) > len(s) && strings.HasSuffix(b, s) {
				b = strings.TrimSuffix(b, s)
				changed = true
			}
		}
	}
	return b
}

// BrandScore returns the brand tier of two domains: the same brand under a
// different public suffix, names equal after normalization or one edit
// apart, two edits apart, or one brand containing the other.
func BrandScore(a, b string) float64 {
	ba, bb := Brand(a), Brand(b)
	if ba == "" || bb == "" {
		return 0
	}
	if ba == bb {
		if suffix(a) != suffix(b) {
			return TierSameBrand
		}
		return TierNormalized
	}
	switch levenshtein.ComputeDistance(ba, bb) {
	case 1:
		return TierNormalized
	case 2:
		return TierEditTwo
	}
	if min(len(ba), len(bb)) >= minContainment && (strings.Contains(ba, bb) || strings.Contains(bb, ba)) {
		return TierContains
	}
	return 0
}

// suffix returns the public suffix of a domain's registrable name.
func suffix(domain string) string {
	d, err := publicsuffix.Domain(domain)
	if err != nil {
		d = strings.ToLower(domain)
	}
	_, s, _ := strings.Cut(d, ".")
	return s
}

// PathShape generalizes a URL path: the first segment is kept and deeper
// segments collapse into "*", so "/products/grip-pro-2" gives "/products/*".
// Slug-like first segments are generalized too. The root path has no shape.
func PathShape(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.FieldsFunc(strings.ToLower(u.Path), func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	first := segments[0]
	if isSlug(first) {
		first = "*"
	}
	if len(segments) == 1 {
		return "/" + first
	}
	return "/" + first + "/*"
}

func isSlug(s string) bool {
	if len(s) > 24 {
		return true
	}
	return strings.ContainsFunc(s, unicode.IsDigit) || strings.Count(s, "-") >= 2 || strings.Contains(s, ".")
}

// PathShapes returns the sorted distinct shapes of urls.
func PathShapes(urls []string) []string {
	var out []string
	for _, u := range urls {
		if s := PathShape(u); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// PatternScore is the larger of the brand tier and the Jaccard index of the
// two path shape sets.
func PatternScore(a, b *leadscout.DedupSignature) float64 {
	return max(BrandScore(a.Domain, b.Domain), jaccard(a.PathShapes, b.PathShapes))
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]int, len(a)+len(b))
	for _, s := range a {
		set[s] |= 1
	}
	for _, s := range b {
		set[s] |= 2
	}
	both := 0
	for _, v := range set {
		if v == 3 {
			both++
		}
	}
	return float64(both) / float64(len(set))
}
