package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var _ leadscout.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a mock implementation of leadscout.Synthesizer.
type Synthesizer struct {
	AnswerFn    func(ctx context.Context, question string, hits []*leadscout.SearchHit, window []leadscout.Message, summary string, followUps bool) (*leadscout.Synthesis, error)
	SummarizeFn func(ctx context.Context, summary string, messages []leadscout.Message) (string, error)
}

func (s *Synthesizer) Answer(ctx context.Context, question string, hits []*leadscout.SearchHit, window []leadscout.Message, summary string, followUps bool) (*leadscout.Synthesis, error) {
	return s.AnswerFn(ctx, question, hits, window, summary, followUps)
}

func (s *Synthesizer) Summarize(ctx context.Context, summary string, messages []leadscout.Message) (string, error) {
	return s.SummarizeFn(ctx, summary, messages)
}
