package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"github.com/mikeboe/research-writer/pkg/splitter"
)

const (
	defaultMaxChars = 12000
	userAgent       = "research-writer/1.0"
	maxBodyBytes    = 5 << 20
)

var summarizePagePrompt = prompts.NewPromptTemplate(`You are a research assistant. Extract everything in the text below that is relevant to the subtopic "{{.focus}}".
Keep facts, numbers, dates and names. Leave out navigation, advertising and anything unrelated to the subtopic.
If nothing in the text is relevant, answer with an empty response.

Text:
{{.text}}`, []string{"focus", "text"})

// DocumentReader returns the text of a document at a URL.
type DocumentReader interface {
	Read(ctx context.Context, url string) (string, error)
}

// PageReader fetches a page, extracts its readable text and summarizes it
// with focus on a subtopic. Links to PDFs are handed to PDF when set.
type PageReader struct {
	Client   *http.Client
	PDF      DocumentReader
	Model    llms.Model
	Splitter *splitter.TextSplitter
	MaxChars int
	Logger   *slog.Logger
}

// FetchSummary implements research.PageFetcher.
func (r *PageReader) FetchSummary(ctx context.Context, link, focus string) (string, error) {
	text, err := r.ReadText(ctx, link)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no readable content at %s", link)
	}
	text = truncate(text, r.maxChars())

	chunks := []string{text}
	if r.Splitter != nil {
		if chunks, err = r.Splitter.SplitText(text); err != nil {
			return "", fmt.Errorf("failed to split page text: %w", err)
		}
	}

	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		prompt, err := summarizePagePrompt.Format(map[string]any{"focus": focus, "text": chunk})
		if err != nil {
			return "", fmt.Errorf("failed to render page prompt: %w", err)
		}
		summary, err := llms.GenerateFromSinglePrompt(ctx, r.Model, prompt, llms.WithTemperature(0.2))
		if err != nil {
			return "", fmt.Errorf("page summary failed: %w", err)
		}
		if summary = strings.TrimSpace(summary); summary != "" {
			parts = append(parts, summary)
		}
	}
	r.logger().Debug("page summarized", "url", link, "chars", len(text), "chunks", len(chunks))
	return strings.Join(parts, "\n\n"), nil
}

// ReadText returns the readable text of a page without summarizing it.
func (r *PageReader) ReadText(ctx context.Context, link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid link %q", link)
	}
	if r.PDF != nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return r.PDF.Read(ctx, link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s returned status %d", link, resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/pdf":
		if r.PDF == nil {
			return "", fmt.Errorf("no pdf reader configured for %s", link)
		}
		return r.PDF.Read(ctx, link)
	case mediaType == "text/plain":
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", link, err)
		}
		return strings.TrimSpace(string(body)), nil
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodyBytes), u)
	if err != nil {
		return "", fmt.Errorf("failed to extract content from %s: %w", link, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if title := strings.TrimSpace(article.Title); title != "" && text != "" {
		text = title + "\n\n" + text
	}
	return text, nil
}

func (r *PageReader) maxChars() int {
	if r.MaxChars > 0 {
		return r.MaxChars
	}
	return defaultMaxChars
}

func (r *PageReader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
