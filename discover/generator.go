// Package discover expands seed keywords into search queries and drives
// search engines concurrently to find candidate domains.
package discover

import (
	"math/rand/v2"
	"strings"
)

// Generator defaults.
const (
	DefaultPerFamily  = 50
	DefaultMaxQueries = 400
)

// DefaultIntents are the purchase intents combined with seeds when a plan
// lists none.
var DefaultIntents = []string{"buy", "price", "shop", "supplier", "wholesale"}

// Plan describes the query space to generate.
type Plan struct {
	Seeds         []string `yaml:"seeds" json:"seeds"`
	Negatives     []string `yaml:"negatives" json:"negatives,omitempty"`
	Intents       []string `yaml:"intents" json:"intents,omitempty"`
	PlatformHints []string `yaml:"platformHints" json:"platformHints,omitempty"`
	TLDs          []string `yaml:"tlds" json:"tlds,omitempty"`
	Regions       []string `yaml:"regions" json:"regions,omitempty"`

	// PerFamily caps how many queries each family contributes.
	PerFamily int `yaml:"perFamily" json:"perFamily,omitempty"`
	// MaxQueries caps the total query count.
	MaxQueries int `yaml:"maxQueries" json:"maxQueries,omitempty"`
	// Seed makes the sampling deterministic.
	Seed uint64 `yaml:"seed" json:"seed,omitempty"`
}

// Generator expands a Plan into search queries.
type Generator struct{}

// NewGenerator returns a new Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a deduplicated query list of at most p.MaxQueries
// entries. Bare seeds come first; the remaining families are sampled with
// p.Seed so the same plan always yields the same queries.
func (g *Generator) Generate(p Plan) []string {
	intents := p.Intents
	if len(intents) == 0 {
		intents = DefaultIntents
	}
	perFamily := p.PerFamily
	if perFamily <= 0 {
		perFamily = DefaultPerFamily
	}
	maxQueries := p.MaxQueries
	if maxQueries <= 0 {
		maxQueries = DefaultMaxQueries
	}

	var negatives []string
	for _, n := range p.Negatives {
		if n = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(n), "-")); n != "" {
			negatives = append(negatives, "-"+n)
		}
	}
	build := func(parts ...string) string {
		return strings.Join(append(parts, negatives...), " ")
	}

	seeds := nonEmpty(p.Seeds)
	var base []string
	for _, s := range seeds {
		base = append(base, build(s))
	}

	families := make([][]string, 5)
	for _, s := range seeds {
		for _, in := range intents {
			families[0] = append(families[0], build(s, in))
		}
		for _, h := range nonEmpty(p.PlatformHints) {
			families[1] = append(families[1], build(s, h))
		}
		for _, in := range head(intents, 5) {
			families[2] = append(families[2], build(in, s))
		}
		for _, in := range head(intents, 3) {
			for _, tld := range nonEmpty(p.TLDs) {
				families[3] = append(families[3], build(s, in, "site:."+strings.TrimPrefix(tld, ".")))
			}
			for _, r := range nonEmpty(p.Regions) {
				families[4] = append(families[4], build(s, in, r))
			}
		}
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	var rest []string
	for _, fam := range families {
		rng.Shuffle(len(fam), func(i, j int) { fam[i], fam[j] = fam[j], fam[i] })
		rest = append(rest, head(fam, perFamily)...)
	}

	seen := make(map[string]struct{})
	out := dedupe(base, seen)
	if len(out) >= maxQueries {
		return out[:maxQueries]
	}
	rest = dedupe(rest, seen)
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	return append(out, head(rest, maxQueries-len(out))...)
}

// dedupe normalizes queries and drops those already in seen.
func dedupe(queries []string, seen map[string]struct{}) []string {
	var out []string
	for _, q := range queries {
		q = strings.Join(strings.Fields(q), " ")
		key := strings.ToLower(q)
		if q == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

func nonEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func head(ss []string, n int) []string {
	if len(ss) > n {
		return ss[:n]
	}
	return ss
}
