package research

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/tmc/langchaingo/llms"
)

// Stream runs one generation call and yields text fragments as the model
// produces them. Providers that ignore the streaming callback yield their
// full response as a single fragment. The sequence is finite and can only be
// ranged over once. Breaking out of the loop cancels the call.
func Stream(ctx context.Context, model llms.Model, msgs []llms.MessageContent, opts ...llms.CallOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		type outcome struct {
			resp *llms.ContentResponse
			err  error
		}
		chunks := make(chan string)
		done := make(chan outcome, 1)
		var streamed atomic.Bool

		onChunk := func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed.Store(true)
			select {
			case chunks <- string(chunk):
				return nil
			case <-runCtx.Done():
				return runCtx.Err()
			}
		}

		go func() {
			callOpts := append(append([]llms.CallOption{}, opts...), llms.WithStreamingFunc(onChunk))
			resp, err := model.GenerateContent(runCtx, msgs, callOpts...)
			done <- outcome{resp: resp, err: err}
		}()

		for {
			select {
			case c := <-chunks:
				if !yield(c, nil) {
					return
				}
			case out := <-done:
				if out.err != nil {
					yield("", fmt.Errorf("streaming generation failed: %w", out.err))
					return
				}
				if !streamed.Load() {
					if text := firstChoice(out.resp); text != "" {
						yield(text, nil)
					}
				}
				return
			}
		}
	}
}

// generate runs a non-streamed call and returns the first choice.
func generate(ctx context.Context, model llms.Model, msgs []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	resp, err := model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func firstChoice(resp *llms.ContentResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Content
}
