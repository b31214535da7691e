// Package gemini implements the language-model services on Google Gemini:
// relevance classification, catalog extraction, embeddings, answer
// synthesis and local token counting.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fwojciec/leadscout"
	"google.golang.org/genai"
)

// Model defaults.
const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultEmbeddingModel = "gemini-embedding-001"
)

// NewClient creates a Gemini API client for apiKey.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "gemini API key required")
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func modelName(name string) string {
	if name == "" {
		return DefaultModel
	}
	return name
}

// generate runs a single-turn request and returns the response text.
func generate(ctx context.Context, client *genai.Client, model, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if client == nil {
		return "", leadscout.Errorf(leadscout.EINTERNAL, "gemini client not configured")
	}
	result, err := client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		config,
	)
	if err != nil {
		return "", modelError(err)
	}
	if result == nil {
		return "", leadscout.Errorf(leadscout.EMODEL, "gemini returned nil result")
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", leadscout.Errorf(leadscout.EMODEL, "gemini returned an empty response")
	}
	return text, nil
}

// modelError classifies a client error. Rejected credentials and malformed
// requests are permanent; everything else may succeed on retry.
func modelError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return leadscout.Errorf(leadscout.EPERMANENT, "gemini: %d %s", apiErr.Code, apiErr.Message)
		}
		return leadscout.Errorf(leadscout.EMODEL, "gemini: %d %s", apiErr.Code, apiErr.Message)
	}
	return leadscout.Errorf(leadscout.EMODEL, "gemini: %v", err)
}

// decodeJSON unmarshals a model response, tolerating a markdown code fence
// around the payload.
func decodeJSON(text string, v any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return leadscout.Errorf(leadscout.EMODEL, "malformed model output: %v", err)
	}
	return nil
}

func jsonConfig(system string, temperature float32, schema *genai.Schema) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
}

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func strs(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Description: desc, Items: &genai.Schema{Type: genai.TypeString}}
}
