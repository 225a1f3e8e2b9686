package research

import (
	"encoding/json"
	"time"
)

// Config holds runtime configuration for a pipeline
type Config struct {
	MaxIterations  int
	SearchWorkers  int
	FetchWorkers   int
	FlushWords     int
	ImageCount     int
	Retry          RetryPolicy
	ThoughtMaxChar int
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  3,
		SearchWorkers:  5,
		FetchWorkers:   5,
		FlushWords:     10,
		ImageCount:     5,
		Retry:          RetryPolicy{MaxAttempts: 2},
		ThoughtMaxChar: 500,
	}
}

// SearchResult represents a single web search result. URL is its identity.
type SearchResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	PageAge       string   `json:"page_age,omitempty"`
	ExtraSnippets []string `json:"extra_snippets,omitempty"`
}

// ImageResult is a supplementary media reference handed to the writer.
type ImageResult struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// HistoryTurn is one prior exchange of a chat session.
type HistoryTurn struct {
	Query     string    `json:"user_query"`
	Response  string    `json:"ai_response"`
	CreatedAt time.Time `json:"created_at"`
}

// JobKind selects which stage sequence a job runs.
type JobKind string

const (
	KindArticle JobKind = "article"
	KindAnswer  JobKind = "answer"
)

// JobStatus is the coarse status of a job row.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusGenerating JobStatus = "generating"
	StatusComplete   JobStatus = "complete"
	StatusError      JobStatus = "error"
)

// Job is a generation request and, once finished, its outcome.
type Job struct {
	ID        string    `json:"id"`
	Kind      JobKind   `json:"kind"`
	Topic     string    `json:"topic"`
	Region    string    `json:"region,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	Status    JobStatus `json:"status"`
	Artifact  *Artifact `json:"artifact,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Artifact is the final product of a completed job.
type Artifact struct {
	Kind        JobKind        `json:"kind"`
	Topic       string         `json:"topic"`
	Plan        string         `json:"blog_plan,omitempty"`
	Content     string         `json:"content"`
	Sources     []SearchResult `json:"search_results"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Status      string         `json:"status"`
}

// Status tags carried by completed artifacts.
const (
	ArticleDone = "BLOG_DONE"
	AnswerDone  = "ANSWER_DONE"
)

// MarshalJSON exposes the content under the field names each client expects.
func (a Artifact) MarshalJSON() ([]byte, error) {
	type alias Artifact
	out := struct {
		alias
		Query       string `json:"query,omitempty"`
		BlogContent string `json:"blog_content,omitempty"`
		Summary     string `json:"summary,omitempty"`
	}{alias: alias(a)}
	switch a.Kind {
	case KindAnswer:
		out.Query = a.Topic
		out.Summary = a.Content
	default:
		out.BlogContent = a.Content
	}
	return json.Marshal(out)
}

// Stage is a step of the generation state machine.
type Stage string

const (
	StageBreakdown  Stage = "breakdown"
	StageSearch     Stage = "search"
	StageReflection Stage = "reflection"
	StagePlanning   Stage = "planning"
	StageWriting    Stage = "writing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// EventRecord is the persisted form of the last emitted event.
type EventRecord struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// GenerationState is the checkpoint of a job.
type GenerationState struct {
	JobID          string      `json:"job_id"`
	Stage          Stage       `json:"stage"`
	Iteration      int         `json:"iteration"`
	IsCompleted    bool        `json:"is_completed"`
	LastEvent      EventRecord `json:"last_event"`
	PartialContent string      `json:"partial_content,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
