package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mikeboe/research-writer/pkg/research"
)

const arxivBaseURL = "https://export.arxiv.org/api/query"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
	Rel  string `xml:"rel,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches papers on arXiv. Region is ignored.
type Arxiv struct {
	MaxResults int
	BaseURL    string
	Client     *http.Client
}

func NewArxiv(maxResults int) *Arxiv {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Arxiv{MaxResults: maxResults, BaseURL: arxivBaseURL, Client: http.DefaultClient}
}

// Search implements research.Searcher. The abstract page is the result URL
// and a PDF link, when present, is kept as an extra snippet.
func (a *Arxiv) Search(ctx context.Context, term, _ string) ([]research.SearchResult, error) {
	params := url.Values{}
	params.Add("search_query", "all:"+term)
	params.Add("max_results", strconv.Itoa(a.MaxResults))
	params.Add("start", "0")
	apiURL := a.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("arXiv returned non-200 status code", "status", resp.StatusCode, "body", string(bodyBytes))
		return nil, fmt.Errorf("arXiv returned status %d", resp.StatusCode)
	}

	var feed ArxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	out := make([]research.SearchResult, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		res := research.SearchResult{
			Title:       collapseSpace(entry.Title),
			URL:         strings.TrimSpace(entry.ID),
			Description: collapseSpace(entry.Summary),
			PageAge:     entry.Published,
		}
		for _, link := range entry.Link {
			switch {
			case link.Type == "application/pdf":
				res.ExtraSnippets = append(res.ExtraSnippets, "PDF: "+link.Href)
			case link.Rel == "alternate" && res.URL == "":
				res.URL = link.Href
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
