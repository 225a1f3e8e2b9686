package research

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// PageFetcher reads a page and summarizes it with focus on a subtopic.
type PageFetcher interface {
	FetchSummary(ctx context.Context, url, focus string) (string, error)
}

// FetchRequest is one page to read.
type FetchRequest struct {
	URL      string
	Subtopic string
}

// FetchResult is the outcome of one page read. Failures are carried in Err
// with Success unset.
type FetchResult struct {
	URL      string
	Subtopic string
	Success  bool
	Summary  string
	Err      error
}

// KnowledgeText renders a successful result for the knowledge base.
func (r FetchResult) KnowledgeText() string {
	return fmt.Sprintf("%s\n%s\n(source: %s)", r.Subtopic, r.Summary, r.URL)
}

// FetchDispatcher reads pages on a bounded worker pool.
type FetchDispatcher struct {
	Fetcher  PageFetcher
	Workers  int
	Recorder Recorder
}

// Run reads every page and waits for all of them. Results are returned in
// request order; one failure never aborts its siblings.
func (d FetchDispatcher) Run(ctx context.Context, reqs []FetchRequest) []FetchResult {
	rec := recorderOrNop(d.Recorder)
	results := make([]FetchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(workerCount(d.Workers))
	for i, req := range reqs {
		g.Go(func() error {
			res := FetchResult{URL: req.URL, Subtopic: req.Subtopic}
			summary, err := d.Fetcher.FetchSummary(ctx, req.URL, req.Subtopic)
			switch {
			case err != nil:
				res.Err = err
			case summary == "":
				res.Err = fmt.Errorf("empty summary for %s", req.URL)
			default:
				res.Success = true
				res.Summary = summary
			}
			if res.Success {
				rec.FanoutTask(ToolScrape, "success")
			} else {
				rec.FanoutTask(ToolScrape, "failure")
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
