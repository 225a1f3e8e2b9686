package research

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Searcher runs one web search.
type Searcher interface {
	Search(ctx context.Context, term, region string) ([]SearchResult, error)
}

// ImageSearcher finds images for a term.
type ImageSearcher interface {
	SearchImages(ctx context.Context, term, region string, count int) ([]ImageResult, error)
}

// TermFailure records a search term that produced no results because its
// provider call failed.
type TermFailure struct {
	Term string
	Err  error
}

func (f TermFailure) Error() string {
	return fmt.Sprintf("search failed for term %q: %v", f.Term, f.Err)
}

// SearchOutcome is the joined result of a search fan-out.
type SearchOutcome struct {
	Results  []SearchResult
	Failures []TermFailure
}

// SearchDispatcher issues one search per term on a bounded worker pool.
type SearchDispatcher struct {
	Searcher Searcher
	Workers  int
	Recorder Recorder
}

// Run searches every term and waits for all of them. Results are deduplicated
// by URL in arrival order, first seen wins. A failed term is reported in
// Failures and does not affect the others. If every term fails the error is
// ErrAllSearchesFailed.
func (d SearchDispatcher) Run(ctx context.Context, terms []string, region string) (SearchOutcome, error) {
	if len(terms) == 0 {
		return SearchOutcome{}, ErrNoSearchTerms
	}
	rec := recorderOrNop(d.Recorder)

	var (
		mu  sync.Mutex
		out SearchOutcome
		g   errgroup.Group
	)
	seen := make(map[string]bool)
	g.SetLimit(workerCount(d.Workers))

	for _, term := range terms {
		g.Go(func() error {
			results, err := d.Searcher.Search(ctx, term, region)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rec.FanoutTask(ToolWebSearch, "failure")
				out.Failures = append(out.Failures, TermFailure{Term: term, Err: err})
				return nil
			}
			rec.FanoutTask(ToolWebSearch, "success")
			for _, r := range results {
				if r.URL == "" || seen[r.URL] {
					continue
				}
				seen[r.URL] = true
				out.Results = append(out.Results, r)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(out.Failures) == len(terms) {
		return out, fmt.Errorf("%w: %d of %d terms", ErrAllSearchesFailed, len(out.Failures), len(terms))
	}
	return out, nil
}

func workerCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Sources is the ordered, URL-unique list of results a run has cited from.
// Citation numbers are 1-based positions in this list.
type Sources struct {
	list []SearchResult
	seen map[string]bool
}

// Add appends results not already present and returns the ones that were new.
func (s *Sources) Add(results ...SearchResult) []SearchResult {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	var added []SearchResult
	for _, r := range results {
		if r.URL == "" || s.seen[r.URL] {
			continue
		}
		s.seen[r.URL] = true
		s.list = append(s.list, r)
		added = append(added, r)
	}
	return added
}

func (s *Sources) List() []SearchResult { return s.list }

func (s *Sources) Len() int { return len(s.list) }

// FormatResults renders results as numbered context text, starting at
// offset+1 so numbers line up with the run's Sources.
func FormatResults(results []SearchResult, offset int) string {
	var sb strings.Builder
	sb.WriteString("Search Results Overview:\n\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] Title: %s\n", offset+i+1, orDefault(r.Title, "No title"))
		fmt.Fprintf(&sb, "Link: %s\n", orDefault(r.URL, "No link"))
		fmt.Fprintf(&sb, "Published: %s\n", orDefault(r.PageAge, "Date not available"))
		fmt.Fprintf(&sb, "Description: %s\n", orDefault(r.Description, "No description"))
		if len(r.ExtraSnippets) > 0 {
			sb.WriteString("Extra Information:\n")
			for _, snip := range r.ExtraSnippets {
				fmt.Fprintf(&sb, "- %s\n", snip)
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
