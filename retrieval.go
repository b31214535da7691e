package leadscout

import "context"

// Role identifies the author of a conversation message.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SearchRequest is a similarity search over the vector index.
type SearchRequest struct {
	Query   string   `json:"query"`
	Filters []Filter `json:"filters,omitempty"`
	TopK    int      `json:"topK"`
	// Collections defaults to every collection when empty.
	Collections []Collection `json:"collections,omitempty"`
}

// Validate returns an error if the request is malformed.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return Errorf(EINVALID, "query required")
	}
	if r.TopK < 0 {
		return Errorf(EINVALID, "top_k must not be negative")
	}
	for _, f := range r.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	for _, c := range r.Collections {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AskRequest is a retrieval question with optional conversation context.
type AskRequest struct {
	SearchRequest
	// Window is the live, unsummarized tail of the conversation.
	Window []Message `json:"window,omitempty"`
	// Summary is the compressed digest of older messages.
	Summary string `json:"summary,omitempty"`
	// ToSummarize holds messages that left the window since the last call.
	ToSummarize []Message `json:"toSummarize,omitempty"`
	// FollowUps asks for suggested follow-up questions.
	FollowUps bool `json:"followUps,omitempty"`
}

// Source is a retrieved chunk cited by an answer.
type Source struct {
	Index      int        `json:"index"`
	Collection Collection `json:"collection"`
	ChunkID    string     `json:"chunkId"`
	Domain     string     `json:"domain,omitempty"`
	URL        string     `json:"url,omitempty"`
	Score      float64    `json:"score"`
}

// Answer is the response to an AskRequest.
type Answer struct {
	Text      string   `json:"answer"`
	Sources   []Source `json:"sources"`
	Summary   string   `json:"summary"`
	FollowUps []string `json:"followUps,omitempty"`
	// Folded is how many ToSummarize messages were folded into Summary.
	Folded int `json:"folded"`
}

// Synthesis is a model-written answer.
type Synthesis struct {
	Text      string
	FollowUps []string
}

// Synthesizer writes answers and conversation summaries with a language model.
type Synthesizer interface {
	// Answer answers question from the retrieved hits and conversation context.
	// Hits are cited by their 1-based position.
	Answer(ctx context.Context, question string, hits []*SearchHit, window []Message, summary string, followUps bool) (*Synthesis, error)

	// Summarize folds messages into an existing summary.
	Summarize(ctx context.Context, summary string, messages []Message) (string, error)
}
