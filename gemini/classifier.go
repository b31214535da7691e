package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/leadscout"
	"google.golang.org/genai"
)

var _ leadscout.Classifier = (*Classifier)(nil)

// Classifier implements leadscout.Classifier using Google Gemini.
type Classifier struct {
	client *genai.Client
	model  string
}

// NewClassifier creates a new Classifier. An empty model selects DefaultModel.
func NewClassifier(client *genai.Client, model string) *Classifier {
	return &Classifier{client: client, model: modelName(model)}
}

// Classify decides whether a site sells products of the industry.
func (c *Classifier) Classify(ctx context.Context, domain, industry, content string) (*leadscout.Classification, error) {
	if domain == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "domain required")
	}
	if industry == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "industry required")
	}
	text, err := generate(ctx, c.client, c.model, BuildClassifyPrompt(domain, industry, content), ClassifyConfig())
	if err != nil {
		return nil, err
	}
	return ParseClassification(text)
}

// ClassifyConfig returns the request config for classification calls.
func ClassifyConfig() *genai.GenerateContentConfig {
	return jsonConfig(
		"You vet websites for a B2B lead list. Accept a site only if it sells physical products of the target industry itself. Reject services, news, directories, blogs and general marketplaces that are not specialized in the industry. Answer from the provided content only.",
		0,
		&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"decision":   {Type: genai.TypeString, Enum: []string{string(leadscout.DecisionAccept), string(leadscout.DecisionReject)}},
				"rationale":  str("One sentence explaining the decision."),
				"confidence": {Type: genai.TypeNumber, Description: "Confidence between 0 and 1."},
			},
			Required:         []string{"decision", "rationale", "confidence"},
			PropertyOrdering: []string{"decision", "rationale", "confidence"},
		},
	)
}

// BuildClassifyPrompt builds the classification prompt for a site.
func BuildClassifyPrompt(domain, industry, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target industry: %s\n", industry)
	fmt.Fprintf(&sb, "Website: https://%s\n\n", domain)
	sb.WriteString("Accept only if ALL conditions hold:\n")
	fmt.Fprintf(&sb, "1) Sells physical %s products\n", industry)
	sb.WriteString("2) Not a pure service, news or directory site\n")
	sb.WriteString("3) Not a general marketplace unless clearly specialized in the industry\n")
	sb.WriteString("4) Has product or shop content for the industry\n\n")
	fmt.Fprintf(&sb, "<content>\n%s\n</content>", content)
	return sb.String()
}

// ParseClassification decodes a classification response.
func ParseClassification(text string) (*leadscout.Classification, error) {
	var out struct {
		Decision   string  `json:"decision"`
		Rationale  string  `json:"rationale"`
		Confidence float64 `json:"confidence"`
	}
	if err := decodeJSON(text, &out); err != nil {
		return nil, err
	}
	cls := &leadscout.Classification{
		Decision:   leadscout.Decision(strings.ToLower(strings.TrimSpace(out.Decision))),
		Rationale:  strings.TrimSpace(out.Rationale),
		Confidence: min(max(out.Confidence, 0), 1),
	}
	if cls.Decision != leadscout.DecisionAccept && cls.Decision != leadscout.DecisionReject {
		return nil, leadscout.Errorf(leadscout.EMODEL, "model answered decision %q", out.Decision)
	}
	return cls, nil
}
