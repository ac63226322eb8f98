package internal

import "time"

// Chunk is one 1-based, ordered segment of a source document.
type Chunk struct {
	Index int    `json:"index" yaml:"index"`
	Text  string `json:"text" yaml:"-"`
}

// TranslationResult is the ephemeral outcome of translating one chunk.
// TranslatedText ends up in the chunk's output file; SuggestionsRaw is
// handed straight to the glossary parser.
type TranslationResult struct {
	ChunkIndex     int
	TranslatedText string
	SuggestionsRaw string
}

// Attempt is a single pass of the chunk pipeline, recorded for reporting.
type Attempt struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	DocumentID string        `json:"document_id"`
	ChunkIndex int           `json:"chunk_index"`
	Status     string        `json:"status"`
	Credential string        `json:"credential"`
	Error      string        `json:"error,omitempty"`
	Latency    time.Duration `json:"latency"`
	CreatedAt  time.Time     `json:"created_at"`
}

const (
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
)
