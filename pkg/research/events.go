package research

import "encoding/json"

// Event names pushed to clients.
const (
	EventStatus             = "status"
	EventBreakdown          = "breakdown"
	EventSearchStart        = "search_start"
	EventScrapeStart        = "scrape_start"
	EventSearchResults      = "search_results"
	EventWarning            = "warning"
	EventThinkingPart       = "thinking_part"
	EventReflectionProgress = "reflection_progress"
	EventBlogStart          = "blog_start"
	EventSummaryPart        = "summary_part"
	EventBlogPart           = "blog_part"
	EventInProgress         = "in_progress"
	EventComplete           = "complete"
	EventError              = "error"

	// eventPlan is checkpointed but never pushed.
	eventPlan = "plan"
)

// Event is one immutable progress or content notification.
type Event struct {
	Name    string
	Payload any
}

type MessagePayload struct {
	Message string `json:"message"`
}

type ThoughtPayload struct {
	Thought string `json:"thought"`
}

type ContentPayload struct {
	Content string `json:"content"`
}

type CountPayload struct {
	Count int `json:"count"`
}

type ProgressPayload struct {
	Iteration     int `json:"iteration"`
	MaxIterations int `json:"max_iterations"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	// Raw is the unparsable model output behind a reflection failure.
	Raw string `json:"raw,omitempty"`
}

// InProgressPayload is the snapshot returned for a claimed, unfinished job.
type InProgressPayload struct {
	Topic          string      `json:"topic"`
	Status         JobStatus   `json:"status"`
	Stage          Stage       `json:"stage"`
	Iteration      int         `json:"iteration"`
	PartialContent string      `json:"partial_content"`
	LastEvent      EventRecord `json:"last_event"`
	Active         bool        `json:"active"`
}

func statusEvent(msg string) Event {
	return Event{Name: EventStatus, Payload: MessagePayload{Message: msg}}
}

func warningEvent(msg string) Event {
	return Event{Name: EventWarning, Payload: MessagePayload{Message: msg}}
}

func errorEvent(msg string) Event {
	return Event{Name: EventError, Payload: ErrorPayload{Error: msg}}
}

func messageList(items []string) []MessagePayload {
	out := make([]MessagePayload, 0, len(items))
	for _, it := range items {
		out = append(out, MessagePayload{Message: it})
	}
	return out
}

// Record converts the event into its checkpoint form.
func (e Event) Record() EventRecord {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		raw = []byte("null")
	}
	return EventRecord{Type: e.Name, Payload: raw}
}
