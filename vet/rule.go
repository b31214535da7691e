package vet

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/fwojciec/leadscout"
)

// Default rule thresholds.
const (
	DefaultAcceptRelevance = 0.35
	DefaultMinRelevance    = 0.10
)

// Thresholds tune the rule stage.
type Thresholds struct {
	// AcceptRelevance is the keyword relevance at which a page with commerce
	// markers is accepted.
	AcceptRelevance float64 `yaml:"acceptRelevance" json:"acceptRelevance,omitempty"`
	// MinRelevance is the relevance below which a page without commerce
	// markers is rejected.
	MinRelevance float64 `yaml:"minRelevance" json:"minRelevance,omitempty"`
}

// Merge returns t with zero fields taken from other.
func (t Thresholds) Merge(other Thresholds) Thresholds {
	if t.AcceptRelevance == 0 {
		t.AcceptRelevance = other.AcceptRelevance
	}
	if t.MinRelevance == 0 {
		t.MinRelevance = other.MinRelevance
	}
	return t
}

// Validate returns EINVALID for thresholds outside [0,1] or inverted.
func (t Thresholds) Validate() error {
	if t.AcceptRelevance < 0 || t.AcceptRelevance > 1 || t.MinRelevance < 0 || t.MinRelevance > 1 {
		return leadscout.Errorf(leadscout.EINVALID, "relevance thresholds must be within [0,1]")
	}
	if t.MinRelevance > t.AcceptRelevance {
		return leadscout.Errorf(leadscout.EINVALID, "min relevance %.2f exceeds accept relevance %.2f", t.MinRelevance, t.AcceptRelevance)
	}
	return nil
}

// DefaultThresholds returns the default rule thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{AcceptRelevance: DefaultAcceptRelevance, MinRelevance: DefaultMinRelevance}
}

// commerceTokens are words any selling site uses somewhere on its pages.
var commerceTokens = []string{
	"cart", "basket", "checkout", "shop", "store", "buy", "price", "order",
	"shipping", "delivery", "product", "sale", "£", "$", "€",
}

var pricePattern = regexp.MustCompile(`(?i)([$£€]\s?\d+([.,]\d{2})?|\d+([.,]\d{2})?\s?(usd|eur|gbp|€|£))`)

// Verdict is the result of the rule stage.
type Verdict struct {
	Decision  leadscout.Decision
	Relevance float64
	Markers   []string
	Rationale string
}

// RuleVetter classifies pages with static heuristics: commerce markers and
// industry keyword relevance.
type RuleVetter struct {
	Keywords   []string
	Detector   Detector
	Thresholds Thresholds
}

// Evaluate classifies content as accept, reject or unclear.
func (r *RuleVetter) Evaluate(c *Content) *Verdict {
	t := r.Thresholds.Merge(DefaultThresholds())
	lowerText := strings.ToLower(c.Text)
	lowerHTML := strings.ToLower(c.HTML)

	if !containsAny(lowerText, commerceTokens) && !containsAny(lowerHTML, commerceTokens) {
		return &Verdict{Decision: leadscout.DecisionReject, Rationale: "no commerce vocabulary"}
	}

	markers := r.markers(c)
	relevance := Relevance(lowerText, r.Keywords)
	v := &Verdict{Relevance: relevance, Markers: markers}

	switch {
	case len(markers) > 0 && relevance >= t.AcceptRelevance:
		v.Decision = leadscout.DecisionAccept
	case len(markers) == 0 && relevance < t.MinRelevance:
		v.Decision = leadscout.DecisionReject
	default:
		v.Decision = leadscout.DecisionUnclear
	}
	v.Rationale = fmt.Sprintf("markers=[%s] relevance=%.2f", strings.Join(markers, ","), relevance)
	return v
}

func (r *RuleVetter) markers(c *Content) []string {
	var markers []string
	if r.Detector != nil {
		s := r.Detector.Detect(c.HTML)
		if s.Platform {
			markers = append(markers, "platform:"+s.PlatformName)
		}
		if s.ProductSchema {
			markers = append(markers, "product-schema")
		}
		if s.Cart {
			markers = append(markers, "cart")
		}
	}
	if pricePattern.MatchString(c.Text) {
		markers = append(markers, "price")
	}
	return markers
}

// Relevance scores lowercased text against industry keywords in [0,1]:
// keyword coverage weighs 0.6 and occurrence volume (saturating at ten
// occurrences) weighs 0.4. Without keywords every page is fully relevant.
func Relevance(lowerText string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 1
	}
	unique, total := 0, 0
	for _, k := range keywords {
		n := strings.Count(lowerText, strings.ToLower(k))
		if n > 0 {
			unique++
			total += n
		}
	}
	return float64(unique)/float64(len(keywords))*0.6 + min(float64(total)/10, 1)*0.4
}

// Keywords derives relevance keywords from an industry phrase: the phrase,
// its words of three or more letters, and any extra terms.
func Keywords(industry string, extra ...string) []string {
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	add(industry)
	for _, w := range strings.Fields(industry) {
		if len(w) >= 3 {
			add(w)
		}
	}
	for _, e := range extra {
		add(e)
	}
	return out
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
