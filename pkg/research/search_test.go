package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]SearchResult
	errs    map[string]error
	delay   time.Duration
	calls   []string

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeSearcher) Search(ctx context.Context, term, region string) ([]SearchResult, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.maxInflight.Load()
		if n <= cur || f.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, term)
	f.mu.Unlock()

	if err := f.errs[term]; err != nil {
		return nil, err
	}
	return f.results[term], nil
}

func (f *fakeSearcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSearchDispatcher_DeduplicatesByURL(t *testing.T) {
	s := &fakeSearcher{results: map[string][]SearchResult{
		"a": {{Title: "A1", URL: "https://1"}, {Title: "A2", URL: "https://2"}},
		"b": {{Title: "B2", URL: "https://2"}, {Title: "B3", URL: "https://3"}, {Title: "no url"}},
	}}

	out, err := SearchDispatcher{Searcher: s, Workers: 5}.Run(context.Background(), []string{"a", "b"}, "US")
	require.NoError(t, err)
	assert.Empty(t, out.Failures)
	require.Len(t, out.Results, 3)

	seen := map[string]bool{}
	for _, r := range out.Results {
		assert.False(t, seen[r.URL], "duplicate %s", r.URL)
		seen[r.URL] = true
	}
}

func TestSearchDispatcher_IsolatesFailedTerm(t *testing.T) {
	s := &fakeSearcher{
		results: map[string][]SearchResult{"B": {{Title: "b", URL: "https://b"}}},
		errs:    map[string]error{"A": errors.New("rate limited")},
	}

	out, err := SearchDispatcher{Searcher: s, Workers: 2}.Run(context.Background(), []string{"A", "B"}, "")
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{{Title: "b", URL: "https://b"}}, out.Results)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "A", out.Failures[0].Term)
	assert.Contains(t, out.Failures[0].Error(), "rate limited")
}

func TestSearchDispatcher_AllFailed(t *testing.T) {
	s := &fakeSearcher{errs: map[string]error{"A": errors.New("x"), "B": errors.New("y")}}

	out, err := SearchDispatcher{Searcher: s}.Run(context.Background(), []string{"A", "B"}, "")
	assert.ErrorIs(t, err, ErrAllSearchesFailed)
	assert.Len(t, out.Failures, 2)
}

func TestSearchDispatcher_NoTerms(t *testing.T) {
	_, err := SearchDispatcher{Searcher: &fakeSearcher{}}.Run(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrNoSearchTerms)
}

func TestSearchDispatcher_BoundsConcurrency(t *testing.T) {
	s := &fakeSearcher{delay: 10 * time.Millisecond}
	terms := make([]string, 12)
	for i := range terms {
		terms[i] = fmt.Sprintf("t%d", i)
	}

	_, err := SearchDispatcher{Searcher: s, Workers: 3}.Run(context.Background(), terms, "")
	// every term returns nothing but none fail
	require.NoError(t, err)
	assert.Equal(t, 12, s.Calls())
	assert.LessOrEqual(t, s.maxInflight.Load(), int32(3))
}

func TestSources_NumbersContinue(t *testing.T) {
	var src Sources
	src.Add(SearchResult{URL: "https://1"}, SearchResult{URL: "https://2"})

	offset := src.Len()
	added := src.Add(SearchResult{URL: "https://2"}, SearchResult{Title: "Three", URL: "https://3"})
	require.Len(t, added, 1)
	assert.Equal(t, 3, src.Len())

	text := FormatResults(added, offset)
	assert.Contains(t, text, "[3] Title: Three")
	assert.Contains(t, text, "Published: Date not available")
	assert.Contains(t, text, "Description: No description")
}

func TestFormatResults_ExtraSnippets(t *testing.T) {
	text := FormatResults([]SearchResult{{
		Title:         "Go 1.24",
		URL:           "https://go.dev",
		PageAge:       "2025-02-11",
		Description:   "release",
		ExtraSnippets: []string{"iterators", "swiss tables"},
	}}, 0)

	assert.Equal(t, "Search Results Overview:\n\n"+
		"[1] Title: Go 1.24\n"+
		"Link: https://go.dev\n"+
		"Published: 2025-02-11\n"+
		"Description: release\n"+
		"Extra Information:\n"+
		"- iterators\n"+
		"- swiss tables", text)
}
