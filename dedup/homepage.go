package dedup

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/fwojciec/leadscout"
)

// Homepage similarity weights. They sum to 1.
const (
	WeightShingles    = 0.35
	WeightDescription = 0.20
	WeightTitle       = 0.15
	WeightCompany     = 0.10
	WeightEmails      = 0.10
	WeightSocials     = 0.10
)

// brandMask replaces a site's own brand in compared text.
const brandMask = "brandmask"

// Similarity compares two homepages in [0,1]. Each site's own brand is
// masked first, so two sites built from one template under different names
// compare as equal. A component missing on either side scores zero.
func Similarity(a, b *leadscout.HomepageFeatures) float64 {
	ma, mb := masker(a.Domain), masker(b.Domain)

	score := WeightShingles * jaccard(maskAll(ma, a.Shingles), maskAll(mb, b.Shingles))
	score += WeightDescription * jaccard(words(ma(a.Description)), words(mb(b.Description)))
	score += WeightTitle * fuzzy(ma(a.Title), mb(b.Title))
	score += WeightCompany * fuzzy(ma(a.CompanyName), mb(b.CompanyName))
	score += WeightEmails * jaccard(maskAll(ma, localParts(a.Emails)), maskAll(mb, localParts(b.Emails)))
	score += WeightSocials * jaccard(maskAll(ma, a.Socials), maskAll(mb, b.Socials))
	return min(score, 1)
}

// masker returns a function that lowercases text and masks the registrable
// label and the brand of domain in it.
func masker(domain string) func(string) string {
	var names []string
	for _, n := range []string{Label(domain), Brand(domain)} {
		if len(n) >= 3 && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return func(s string) string {
		s = strings.ToLower(s)
		for _, n := range names {
			s = strings.ReplaceAll(s, n, brandMask)
		}
		return s
	}
}

func maskAll(mask func(string) string, ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, mask(s))
	}
	return out
}

func notWord(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func words(s string) []string {
	return strings.FieldsFunc(s, notWord)
}

func localParts(emails []string) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		local, _, _ := strings.Cut(strings.ToLower(e), "@")
		if local != "" {
			out = append(out, local)
		}
	}
	return out
}

// fuzzy is one minus the edit distance normalized by the longer string.
func fuzzy(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return max(0, 1-float64(levenshtein.ComputeDistance(a, b))/float64(longest))
}
