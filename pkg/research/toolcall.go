package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	ToolWebSearch = "web_search"
	ToolScrape    = "scrape"

	// NoGapsSentinel ends the reflection loop without further research.
	NoGapsSentinel = "NO_GAPS_FOUND"

	maxToolParams = 3
)

// ToolCall is a research request produced by the reflection step.
// Implementations are WebSearch and Scrape.
type ToolCall interface {
	Tool() string
}

// WebSearch asks for more search terms to be run.
type WebSearch struct {
	Terms []string
}

func (WebSearch) Tool() string { return ToolWebSearch }

// Scrape asks for specific pages to be read with a focus subtopic.
type Scrape struct {
	Subtopic string
	Links    []string
}

func (Scrape) Tool() string { return ToolScrape }

// Decision is the parsed outcome of one reflection turn.
type Decision struct {
	NoGaps bool
	Calls  []ToolCall
	// Truncated is set when a call carried more than three parameters.
	Truncated bool
}

type wireToolCall struct {
	Tool       string   `json:"tool"`
	Parameters []string `json:"parameters"`
}

// ParseToolCalls reads the answer text of a reflection turn. Code fences are
// ignored. The sentinel, bare or quoted or as the only array element, and an
// empty array both mean no gaps.
func ParseToolCalls(text string) (Decision, error) {
	body := stripCodeFences(text)
	if body == "" {
		return Decision{}, &ParseError{Raw: text, Err: errors.New("empty response")}
	}
	if isSentinel(body) {
		return Decision{NoGaps: true}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		start, end := strings.IndexByte(body, '['), strings.LastIndexByte(body, ']')
		if start < 0 || end <= start {
			return Decision{}, &ParseError{Raw: text, Err: err}
		}
		if err := json.Unmarshal([]byte(body[start:end+1]), &items); err != nil {
			return Decision{}, &ParseError{Raw: text, Err: err}
		}
	}

	if len(items) == 0 {
		return Decision{NoGaps: true}, nil
	}
	if len(items) == 1 {
		var s string
		if json.Unmarshal(items[0], &s) == nil && strings.TrimSpace(s) == NoGapsSentinel {
			return Decision{NoGaps: true}, nil
		}
	}

	var d Decision
	for i, item := range items {
		var w wireToolCall
		if err := json.Unmarshal(item, &w); err != nil {
			return Decision{}, &ParseError{Raw: text, Err: fmt.Errorf("call %d: %w", i, err)}
		}
		call, truncated, err := w.toToolCall()
		if err != nil {
			return Decision{}, &ParseError{Raw: text, Err: fmt.Errorf("call %d: %w", i, err)}
		}
		d.Truncated = d.Truncated || truncated
		d.Calls = append(d.Calls, call)
	}
	return d, nil
}

func (w wireToolCall) toToolCall() (ToolCall, bool, error) {
	params := make([]string, 0, len(w.Parameters))
	for _, p := range w.Parameters {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}

	switch strings.TrimSpace(w.Tool) {
	case ToolWebSearch:
		if len(params) == 0 {
			return nil, false, errors.New("web_search without terms")
		}
		terms, truncated := capParams(params)
		return WebSearch{Terms: terms}, truncated, nil
	case ToolScrape:
		if len(params) < 2 {
			return nil, false, errors.New("scrape needs a subtopic and at least one link")
		}
		links, truncated := capParams(params[1:])
		return Scrape{Subtopic: params[0], Links: links}, truncated, nil
	default:
		return nil, false, fmt.Errorf("unknown tool %q", w.Tool)
	}
}

func capParams(p []string) ([]string, bool) {
	if len(p) > maxToolParams {
		return p[:maxToolParams], true
	}
	return p, false
}

func isSentinel(s string) bool {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	return s == NoGapsSentinel
}

// stripCodeFences drops markdown fence lines such as ```json.
func stripCodeFences(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
