package research

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ScriptedModel is an llms.Model that replays canned replies. Each reply is a
// list of chunks delivered through the streaming callback when one is set.
// The last reply repeats once the script runs out.
type ScriptedModel struct {
	mu       sync.Mutex
	Replies  [][]string
	Errs     []error
	calls    int
	Messages [][]llms.MessageContent
	Streamed []bool
}

func Script(replies ...string) *ScriptedModel {
	m := &ScriptedModel{}
	for _, r := range replies {
		m.Replies = append(m.Replies, []string{r})
	}
	return m
}

func (m *ScriptedModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	var o llms.CallOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.Messages = append(m.Messages, append([]llms.MessageContent(nil), msgs...))
	m.Streamed = append(m.Streamed, o.StreamingFunc != nil)
	var err error
	if idx < len(m.Errs) {
		err = m.Errs[idx]
	}
	var chunks []string
	if len(m.Replies) > 0 {
		chunks = m.Replies[min(idx, len(m.Replies)-1)]
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if o.StreamingFunc != nil {
		for _, c := range chunks {
			if err := o.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: strings.Join(chunks, "")}}}, nil
}

func (m *ScriptedModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

// Calls returns how many generation calls were made.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastText returns the text of the final message of call i.
func (m *ScriptedModel) LastText(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.Messages[i]
	var sb strings.Builder
	for _, p := range msgs[len(msgs)-1].Parts {
		if tc, ok := p.(llms.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
