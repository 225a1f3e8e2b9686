package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mikeboe/research-writer/pkg/research"
)

const braveBaseURL = "https://api.search.brave.com/res/v1"

// Brave searches the web and images through the Brave Search API.
type Brave struct {
	APIKey  string
	Count   int
	BaseURL string
	Client  *http.Client
}

// NewBrave creates a Brave client returning count results per query.
func NewBrave(apiKey string, count int) *Brave {
	if count <= 0 {
		count = 5
	}
	return &Brave{APIKey: apiKey, Count: count, BaseURL: braveBaseURL, Client: http.DefaultClient}
}

type braveWebResponse struct {
	Web struct {
		Results []struct {
			Title         string   `json:"title"`
			URL           string   `json:"url"`
			Description   string   `json:"description"`
			PageAge       string   `json:"page_age"`
			ExtraSnippets []string `json:"extra_snippets"`
		} `json:"results"`
	} `json:"web"`
}

type braveImageResponse struct {
	Results []struct {
		Title      string `json:"title"`
		Source     string `json:"source"`
		Properties struct {
			URL string `json:"url"`
		} `json:"properties"`
	} `json:"results"`
}

// Search implements research.Searcher.
func (b *Brave) Search(ctx context.Context, term, region string) ([]research.SearchResult, error) {
	var raw braveWebResponse
	if err := b.get(ctx, "/web/search", term, region, b.Count, &raw); err != nil {
		return nil, err
	}
	out := make([]research.SearchResult, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		out = append(out, research.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Description:   r.Description,
			PageAge:       r.PageAge,
			ExtraSnippets: r.ExtraSnippets,
		})
	}
	return out, nil
}

// SearchImages implements research.ImageSearcher.
func (b *Brave) SearchImages(ctx context.Context, term, region string, count int) ([]research.ImageResult, error) {
	var raw braveImageResponse
	if err := b.get(ctx, "/images/search", term, region, count, &raw); err != nil {
		return nil, err
	}
	out := make([]research.ImageResult, 0, len(raw.Results))
	for _, r := range raw.Results {
		if r.Properties.URL == "" {
			continue
		}
		out = append(out, research.ImageResult{Title: r.Title, URL: r.Properties.URL, Source: r.Source})
	}
	return out, nil
}

func (b *Brave) get(ctx context.Context, path, term, region string, count int, into any) error {
	if b.APIKey == "" {
		return fmt.Errorf("brave api key is not set")
	}
	params := url.Values{}
	params.Set("q", term)
	params.Set("count", strconv.Itoa(count))
	params.Set("country", NormalizeRegion(region))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(b.BaseURL, "/")+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.client().Do(req)
	if err != nil {
		return fmt.Errorf("brave request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("brave returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to decode brave response: %w", err)
	}
	return nil
}

func (b *Brave) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}
