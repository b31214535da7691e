// Package retrieve answers questions from the vector index: hybrid search
// across collections, answer synthesis with cited sources, and
// conversations with bounded memory.
package retrieve

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/fwojciec/leadscout"
	"golang.org/x/sync/errgroup"
)

// Engine defaults.
const (
	DefaultAlpha           = 0.8
	DefaultTopK            = 8
	DefaultCandidateFactor = 3
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "at": {}, "be": {}, "by": {}, "do": {}, "for": {},
	"from": {}, "has": {}, "have": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "what": {}, "which": {}, "who": {},
	"with": {}, "you": {}, "your": {}, "under": {}, "over": {}, "me": {}, "show": {}, "any": {},
}

// Engine runs searches and answers questions.
type Engine struct {
	Embedder    leadscout.Embedder
	Vectors     leadscout.VectorService
	Synthesizer leadscout.Synthesizer

	// Alpha weighs vector similarity against lexical overlap. Zero means
	// DefaultAlpha.
	Alpha float64
	// CandidateFactor widens the per-collection fetch before re-ranking.
	CandidateFactor int
	// CallTimeout bounds each embedding and synthesis call. Zero means
	// leadscout.DefaultModelTimeout.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

func (e *Engine) alpha() float64 {
	if e.Alpha > 0 && e.Alpha <= 1 {
		return e.Alpha
	}
	return DefaultAlpha
}

func (e *Engine) candidateFactor() int {
	if e.CandidateFactor > 0 {
		return e.CandidateFactor
	}
	return DefaultCandidateFactor
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Search embeds the query, searches the requested collections with the
// filters applied by the store, re-ranks by hybrid score and returns the
// best TopK hits.
func (e *Engine) Search(ctx context.Context, req leadscout.SearchRequest) ([]*leadscout.SearchHit, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	topK := req.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	collections := req.Collections
	if len(collections) == 0 {
		collections = leadscout.Collections()
	}

	vectors, err := leadscout.CallModel(ctx, e.CallTimeout, func(ctx context.Context) ([][]float32, error) {
		return e.Embedder.Embed(ctx, []string{req.Query})
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, leadscout.Errorf(leadscout.EMODEL, "embedder returned %d vectors for one query", len(vectors))
	}

	perCollection := make([][]*leadscout.SearchHit, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collections {
		g.Go(func() error {
			hits, err := e.Vectors.SearchVectors(gctx, c, vectors[0], req.Filters, topK*e.candidateFactor())
			if err != nil {
				return err
			}
			perCollection[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	terms := Terms(req.Query)
	alpha := e.alpha()
	var merged []*leadscout.SearchHit
	for _, hits := range perCollection {
		for _, h := range hits {
			if !matchAll(req.Filters, h.Metadata) {
				continue
			}
			h.Score = alpha*h.Similarity + (1-alpha)*Lexical(terms, h.Text)
			merged = append(merged, h)
		}
	}
	slices.SortStableFunc(merged, func(a, b *leadscout.SearchHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

func matchAll(filters []leadscout.Filter, md leadscout.ChunkMetadata) bool {
	for _, f := range filters {
		if !f.Match(md) {
			return false
		}
	}
	return true
}

// Terms returns the distinct lowercase content words of s.
func Terms(s string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if _, stop := stopwords[w]; stop || len(w) < 2 {
			continue
		}
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}

// Lexical is the share of query terms that occur in text.
func Lexical(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	have := Terms(text)
	n := 0
	for _, t := range terms {
		if slices.Contains(have, t) {
			n++
		}
	}
	return float64(n) / float64(len(terms))
}

// Ask searches, answers from the hits and folds req.ToSummarize into the
// summary. A failed summary keeps the old one and reports Folded as zero;
// the answer is still returned.
func (e *Engine) Ask(ctx context.Context, req leadscout.AskRequest) (*leadscout.Answer, error) {
	hits, err := e.Search(ctx, req.SearchRequest)
	if err != nil {
		return nil, err
	}

	syn, err := leadscout.CallModel(ctx, e.CallTimeout, func(ctx context.Context) (*leadscout.Synthesis, error) {
		return e.Synthesizer.Answer(ctx, req.Query, hits, req.Window, req.Summary, req.FollowUps)
	})
	if err != nil {
		return nil, err
	}

	ans := &leadscout.Answer{
		Text:      syn.Text,
		Sources:   Sources(hits),
		Summary:   req.Summary,
		FollowUps: syn.FollowUps,
	}
	if len(req.ToSummarize) > 0 {
		summary, err := leadscout.CallModel(ctx, e.CallTimeout, func(ctx context.Context) (string, error) {
			return e.Synthesizer.Summarize(ctx, req.Summary, req.ToSummarize)
		})
		if err != nil {
			e.logger().Warn("summary failed", "messages", len(req.ToSummarize), "error", err)
		} else {
			ans.Summary = summary
			ans.Folded = len(req.ToSummarize)
		}
	}
	return ans, nil
}

// Sources numbers hits from 1 in ranking order.
func Sources(hits []*leadscout.SearchHit) []leadscout.Source {
	out := make([]leadscout.Source, 0, len(hits))
	for i, h := range hits {
		out = append(out, leadscout.Source{
			Index:      i + 1,
			Collection: h.Collection,
			ChunkID:    h.ID,
			Domain:     h.Metadata.Domain,
			URL:        h.Metadata.URL,
			Score:      h.Score,
		})
	}
	return out
}

// Converse asks req.Query within the conversation held by m. Messages that
// no longer fit the window are folded into the summary, and the turn is
// committed only when the answer succeeds.
func (e *Engine) Converse(ctx context.Context, m *Memory, req leadscout.AskRequest) (*leadscout.Answer, error) {
	req.Window = m.Window()
	req.Summary = m.Summary
	req.ToSummarize = m.Evictions(2)

	ans, err := e.Ask(ctx, req)
	if err != nil {
		return nil, err
	}
	m.Commit(ans.Summary, ans.Folded,
		leadscout.Message{Role: leadscout.RoleUser, Content: req.Query},
		leadscout.Message{Role: leadscout.RoleAssistant, Content: ans.Text},
	)
	return ans, nil
}
