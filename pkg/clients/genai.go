package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// GenAIModel implements llms.Model on the Gemini API streaming endpoint.
// With IncludeThoughts set, thought parts are requested and wrapped in
// <think> markers so callers can separate them from the answer; otherwise
// they are dropped.
type GenAIModel struct {
	client          *genai.Client
	model           string
	IncludeThoughts bool
}

func NewGenAIModel(ctx context.Context, apiKey, model string) (*GenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = ProModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}
	return &GenAIModel{client: client, model: model}, nil
}

func (m *GenAIModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// GenerateContent streams the response, forwarding each fragment to the
// StreamingFunc option when set, and returns the full text.
func (m *GenAIModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	contents, system := toGenAIContents(messages)
	if len(contents) == 0 {
		return nil, errors.New("no message content to send")
	}

	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		cfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if m.IncludeThoughts {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	var (
		full strings.Builder
		tw   thoughtWrapper
	)
	emit := func(s string) error {
		if s == "" {
			return nil
		}
		full.WriteString(s)
		if opts.StreamingFunc != nil {
			return opts.StreamingFunc(ctx, []byte(s))
		}
		return nil
	}

	for resp, err := range m.client.Models.GenerateContentStream(ctx, m.model, contents, cfg) {
		if err != nil {
			return nil, fmt.Errorf("genai stream failed: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil || (part.Thought && !m.IncludeThoughts) {
				continue
			}
			if err := emit(tw.part(part.Text, part.Thought)); err != nil {
				return nil, err
			}
		}
	}
	if err := emit(tw.close()); err != nil {
		return nil, err
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full.String()}}}, nil
}

// toGenAIContents converts the conversation. System messages become the
// system instruction and AI messages take the model role.
func toGenAIContents(messages []llms.MessageContent) ([]*genai.Content, *genai.Content) {
	var (
		contents []*genai.Content
		system   *genai.Content
	)
	for _, msg := range messages {
		var parts []*genai.Part
		for _, p := range msg.Parts {
			if tc, ok := p.(llms.TextContent); ok && tc.Text != "" {
				parts = append(parts, &genai.Part{Text: tc.Text})
			}
		}
		if len(parts) == 0 {
			continue
		}
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, parts...)
		case llms.ChatMessageTypeAI:
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: parts})
		}
	}
	return contents, system
}

// thoughtWrapper inserts think markers at transitions between thought and
// answer parts.
type thoughtWrapper struct {
	inside bool
}

func (w *thoughtWrapper) part(text string, thought bool) string {
	if text == "" {
		return ""
	}
	switch {
	case thought && !w.inside:
		w.inside = true
		return thinkOpen + text
	case !thought && w.inside:
		w.inside = false
		return thinkClose + text
	}
	return text
}

func (w *thoughtWrapper) close() string {
	if w.inside {
		w.inside = false
		return thinkClose
	}
	return ""
}
