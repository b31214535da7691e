package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/leadscout"
	"google.golang.org/genai"
)

// maxFollowUps caps suggested follow-up questions.
const maxFollowUps = 3

var _ leadscout.Synthesizer = (*Synthesizer)(nil)

// Synthesizer implements leadscout.Synthesizer using Google Gemini.
type Synthesizer struct {
	client *genai.Client
	model  string
}

// NewSynthesizer creates a new Synthesizer. An empty model selects
// DefaultModel.
func NewSynthesizer(client *genai.Client, model string) *Synthesizer {
	return &Synthesizer{client: client, model: modelName(model)}
}

// Answer answers a question from retrieved hits, citing them as [n].
func (s *Synthesizer) Answer(ctx context.Context, question string, hits []*leadscout.SearchHit, window []leadscout.Message, summary string, followUps bool) (*leadscout.Synthesis, error) {
	if question == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "question required")
	}
	prompt := BuildAnswerPrompt(question, hits, window, summary, followUps)
	text, err := generate(ctx, s.client, s.model, prompt, AnswerConfig())
	if err != nil {
		return nil, err
	}
	syn, err := ParseSynthesis(text)
	if err != nil {
		return nil, err
	}
	if !followUps {
		syn.FollowUps = nil
	}
	return syn, nil
}

// Summarize folds messages into the running conversation summary.
func (s *Synthesizer) Summarize(ctx context.Context, summary string, messages []leadscout.Message) (string, error) {
	if len(messages) == 0 {
		return summary, nil
	}
	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{
				Text: "You maintain a compact running summary of a conversation about companies and products. Keep every company, product, price and decision mentioned. Answer with the updated summary only.",
			}},
		},
		Temperature: &temp,
	}
	text, err := generate(ctx, s.client, s.model, BuildSummaryPrompt(summary, messages), config)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// AnswerConfig returns the request config for answer synthesis.
func AnswerConfig() *genai.GenerateContentConfig {
	return jsonConfig(
		"You answer questions about companies and their products using only the numbered sources provided. Cite sources inline as [n]. If the sources do not contain the answer, say so.",
		0.3,
		&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"answer":     str("The answer with inline [n] citations."),
				"follow_ups": strs("Short follow-up questions the user may ask next."),
			},
			Required: []string{"answer"},
		},
	)
}

// BuildAnswerPrompt builds the answer prompt with numbered sources and the
// conversation context.
func BuildAnswerPrompt(question string, hits []*leadscout.SearchHit, window []leadscout.Message, summary string, followUps bool) string {
	var sb strings.Builder
	sb.WriteString("<sources>\n")
	for i, h := range hits {
		fmt.Fprintf(&sb, "<source index=\"%d\" collection=\"%s\"", i+1, h.Collection)
		if h.Metadata.Domain != "" {
			fmt.Fprintf(&sb, " domain=\"%s\"", h.Metadata.Domain)
		}
		if h.Metadata.URL != "" {
			fmt.Fprintf(&sb, " url=\"%s\"", h.Metadata.URL)
		}
		fmt.Fprintf(&sb, ">\n%s\n</source>\n", h.Text)
	}
	sb.WriteString("</sources>\n\n")
	if summary != "" {
		fmt.Fprintf(&sb, "<summary>\n%s\n</summary>\n\n", summary)
	}
	if len(window) > 0 {
		sb.WriteString("<conversation>\n")
		for _, m := range window {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
		sb.WriteString("</conversation>\n\n")
	}
	fmt.Fprintf(&sb, "Question: %s", question)
	if followUps {
		fmt.Fprintf(&sb, "\n\nAlso suggest up to %d follow-up questions.", maxFollowUps)
	}
	return sb.String()
}

// BuildSummaryPrompt builds the prompt that folds messages into summary.
func BuildSummaryPrompt(summary string, messages []leadscout.Message) string {
	var sb strings.Builder
	if summary != "" {
		fmt.Fprintf(&sb, "Current summary:\n%s\n\n", summary)
	}
	sb.WriteString("New messages:\n")
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	sb.WriteString("\nWrite the updated summary.")
	return sb.String()
}

// ParseSynthesis decodes an answer response.
func ParseSynthesis(text string) (*leadscout.Synthesis, error) {
	var out struct {
		Answer    string   `json:"answer"`
		FollowUps []string `json:"follow_ups"`
	}
	if err := decodeJSON(text, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Answer) == "" {
		return nil, leadscout.Errorf(leadscout.EMODEL, "model answered without text")
	}
	syn := &leadscout.Synthesis{Text: strings.TrimSpace(out.Answer)}
	for _, q := range out.FollowUps {
		if q = strings.TrimSpace(q); q != "" && len(syn.FollowUps) < maxFollowUps {
			syn.FollowUps = append(syn.FollowUps, q)
		}
	}
	return syn, nil
}
