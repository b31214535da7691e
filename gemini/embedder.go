package gemini

import (
	"context"
	"slices"

	"github.com/fwojciec/leadscout"
	"google.golang.org/genai"
)

// maxEmbedBatch is the most texts the API embeds in one request.
const maxEmbedBatch = 100

var _ leadscout.Embedder = (*Embedder)(nil)

// Embedder implements leadscout.Embedder using the Gemini embedding API.
type Embedder struct {
	client *genai.Client
	model  string

	// Dimensions truncates vectors when positive.
	Dimensions int32
	// TaskType tunes the embedding, e.g. RETRIEVAL_DOCUMENT.
	TaskType string
}

// NewEmbedder creates a new Embedder. An empty model selects
// DefaultEmbeddingModel.
func NewEmbedder(client *genai.Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns one vector per text, in order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.client == nil {
		return nil, leadscout.Errorf(leadscout.EINTERNAL, "gemini client not configured")
	}
	config := &genai.EmbedContentConfig{TaskType: e.TaskType}
	if e.Dimensions > 0 {
		config.OutputDimensionality = &e.Dimensions
	}

	out := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, maxEmbedBatch) {
		contents := make([]*genai.Content, 0, len(batch))
		for _, t := range batch {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}
		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
		if err != nil {
			return nil, modelError(err)
		}
		if resp == nil || len(resp.Embeddings) != len(batch) {
			return nil, leadscout.Errorf(leadscout.EMODEL, "gemini returned wrong embedding count for %d texts", len(batch))
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}
