package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// run is the state of one claimed job while it executes.
type run struct {
	p     *Pipeline
	ctx   context.Context
	job   Job
	log   *slog.Logger
	rec   Recorder
	yield func(Event) bool

	sm        *stateMachine
	sources   Sources
	knowledge strings.Builder
	images    []ImageResult
	partial   strings.Builder
	history   []HistoryTurn
}

func (p *Pipeline) execute(ctx context.Context, job Job, history []HistoryTurn, yield func(Event) bool) {
	r := &run{
		p:       p,
		ctx:     ctx,
		job:     job,
		log:     p.jobLogger(job.ID),
		rec:     p.deps.Recorder,
		yield:   yield,
		sm:      newStateMachine(job.ID, p.deps.Now),
		history: history,
	}

	if p.deps.Lease != nil {
		bg := context.WithoutCancel(ctx)
		ok, err := p.deps.Lease.Acquire(bg, job.ID)
		if err != nil {
			r.log.Warn("Failed to acquire job lease", "error", err)
		} else if ok {
			defer func() {
				if err := p.deps.Lease.Release(bg, job.ID); err != nil {
					r.log.Warn("Failed to release job lease", "error", err)
				}
			}()
		}
	}

	start := p.deps.Now()
	r.log.Info("Starting generation", "kind", job.Kind, "topic", job.Topic, "region", job.Region)

	artifact, err := r.generate()
	switch {
	case errors.Is(err, errStopped) || (err != nil && ctx.Err() != nil):
		r.log.Info("Stream consumer went away, leaving job resumable", "stage", r.sm.state.Stage)
		r.rec.RunFinished(job.Kind, "stopped")
	case err != nil:
		r.fail(err)
	default:
		r.complete(artifact)
	}
	r.log.Info("Generation finished", "duration", p.deps.Now().Sub(start))
}

func (r *run) generate() (*Artifact, error) {
	terms, err := r.breakdown()
	if err != nil {
		return nil, fmt.Errorf("breakdown failed: %w", err)
	}
	if err := r.search(terms); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if r.job.Kind == KindAnswer {
		return r.answer()
	}
	return r.article(terms)
}

// --- Stages ---

func (r *run) breakdown() ([]string, error) {
	if err := r.enter(StageBreakdown, 0); err != nil {
		return nil, err
	}
	if err := r.emit(statusEvent("Breaking down topic into search terms...")); err != nil {
		return nil, err
	}

	if r.history == nil && r.job.ChatID != "" {
		h, err := r.p.deps.Store.ChatHistory(r.ctx, r.job.ChatID)
		if err != nil {
			return nil, fmt.Errorf("failed to load chat history: %w", err)
		}
		r.history = h
	}

	gen := TermGenerator{Model: r.p.deps.Models.Fast, Retry: r.p.cfg.Retry, Now: r.p.deps.Now}
	terms, err := gen.Generate(r.ctx, r.job.Topic, r.history)
	if err != nil {
		return nil, err
	}
	r.log.Info("Generated search terms", "terms", terms)

	return terms, r.emit(Event{Name: EventBreakdown, Payload: terms})
}

func (r *run) search(terms []string) error {
	if err := r.enter(StageSearch, 0); err != nil {
		return err
	}
	if err := r.emit(statusEvent("Performing initial search...")); err != nil {
		return err
	}
	if err := r.emit(Event{Name: EventSearchStart, Payload: messageList(terms)}); err != nil {
		return err
	}

	outcome, err := r.searchDispatcher().Run(r.ctx, terms, r.job.Region)
	if werr := r.warnTermFailures(outcome.Failures); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}

	r.sources.Add(outcome.Results...)
	r.knowledge.WriteString(FormatResults(r.sources.List(), 0))
	r.log.Info("Initial search complete", "results", r.sources.Len(), "failed_terms", len(outcome.Failures))

	return r.emit(Event{Name: EventSearchResults, Payload: r.sources.List()})
}

func (r *run) answer() (*Artifact, error) {
	if err := r.enter(StageWriting, 0); err != nil {
		return nil, err
	}
	if err := r.emit(statusEvent("Writing answer...")); err != nil {
		return nil, err
	}

	w := r.writer()
	results := FormatResults(r.sources.List(), 0)
	for frag, err := range w.Summarize(r.ctx, r.job.Topic, results, r.history) {
		if err != nil {
			return nil, fmt.Errorf("summary failed: %w", err)
		}
		r.partial.WriteString(frag)
		if err := r.emit(Event{Name: EventSummaryPart, Payload: ContentPayload{Content: frag}}); err != nil {
			return nil, err
		}
	}
	summary := r.partial.String()

	suggestions, err := w.Suggestions(r.ctx, r.job.Topic, summary)
	if err != nil {
		r.log.Warn("Failed to generate suggestions", "error", err)
		if err := r.emit(warningEvent("Could not generate follow-up suggestions")); err != nil {
			return nil, err
		}
	}

	artifact := &Artifact{
		Kind:        KindAnswer,
		Topic:       r.job.Topic,
		Content:     RewriteCitations(summary, r.sources.List()),
		Sources:     r.sources.List(),
		Suggestions: suggestions,
		Status:      AnswerDone,
	}

	if r.job.ChatID != "" {
		if err := r.p.deps.Store.AppendChatMessage(r.ctx, r.job.ChatID, r.job.Topic, artifact.Content); err != nil {
			r.log.Warn("Failed to save chat message", "chat_id", r.job.ChatID, "error", err)
			if err := r.emit(warningEvent("Answer was not saved to the chat history")); err != nil {
				return nil, err
			}
		}
	}
	return artifact, nil
}

func (r *run) article(terms []string) (*Artifact, error) {
	if err := r.reflect(terms); err != nil {
		return nil, fmt.Errorf("reflection failed: %w", err)
	}

	if err := r.enter(StagePlanning, 0); err != nil {
		return nil, err
	}
	if err := r.emit(statusEvent("Planning article")); err != nil {
		return nil, err
	}
	w := r.writer()
	knowledge := r.knowledge.String()
	plan, err := w.Plan(r.ctx, r.job.Topic, knowledge)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}
	r.checkpoint(Event{Name: eventPlan, Payload: map[string]string{"plan": plan}})

	if err := r.enter(StageWriting, 0); err != nil {
		return nil, err
	}
	if err := r.emit(Event{Name: EventBlogStart, Payload: ContentPayload{}}); err != nil {
		return nil, err
	}
	for frag, err := range w.Write(r.ctx, r.job.Topic, knowledge, plan, r.images) {
		if err != nil {
			return nil, fmt.Errorf("writing failed: %w", err)
		}
		r.partial.WriteString(frag)
		if err := r.emit(Event{Name: EventBlogPart, Payload: ContentPayload{Content: frag}}); err != nil {
			return nil, err
		}
	}

	return &Artifact{
		Kind:    KindArticle,
		Topic:   r.job.Topic,
		Plan:    plan,
		Content: RewriteCitations(r.partial.String(), r.sources.List()),
		Sources: r.sources.List(),
		Status:  ArticleDone,
	}, nil
}

// reflect runs the initial reflection turn and up to MaxIterations rounds of
// tool execution, each followed by another turn.
func (r *run) reflect(terms []string) error {
	if err := r.enter(StageReflection, 0); err != nil {
		return err
	}
	if err := r.emit(statusEvent("Starting to research and reflect")); err != nil {
		return err
	}

	onThought := func(t string) error {
		return r.emit(Event{Name: EventThinkingPart, Payload: ThoughtPayload{Thought: t}})
	}
	reflector := NewReflector(r.p.deps.Models.Reasoning, r.p.cfg.Retry, r.p.cfg.FlushWords, r.log)

	summary := "Initial research covered these search terms: " + strings.Join(terms, ", ")
	decision, err := reflector.Start(r.ctx, r.job.Topic, summary, r.knowledge.String(), r.p.deps.Now(), onThought)
	if err != nil {
		return err
	}
	if err := r.emit(statusEvent("Preliminary research completed, moving ahead")); err != nil {
		return err
	}

	maxIter := r.p.cfg.MaxIterations
	iterations := 0
	for i := 1; i <= maxIter && !decision.NoGaps && len(decision.Calls) > 0; i++ {
		if err := r.enter(StageReflection, i); err != nil {
			return err
		}
		iterations = i

		found, results, err := r.runTools(decision.Calls)
		if err != nil {
			return err
		}
		if results != "" {
			r.knowledge.WriteString("\n\n" + results)
		}
		if found != "" {
			r.knowledge.WriteString("\n\n" + found)
		}

		input, err := reflectionInput(orDefault(found, "No new page summaries."), orDefault(results, "No new search results."))
		if err != nil {
			return err
		}
		decision, err = reflector.Send(r.ctx, input, onThought)
		if err != nil {
			return err
		}
		if err := r.emit(Event{Name: EventReflectionProgress, Payload: ProgressPayload{Iteration: i, MaxIterations: maxIter}}); err != nil {
			return err
		}
	}

	r.rec.ReflectionIterations(iterations)
	r.log.Info("Reflection finished", "iterations", iterations, "sources", r.sources.Len())
	return nil
}

// runTools executes one round of tool calls. It returns the page summaries
// gathered and the rendered text of newly found search results.
func (r *run) runTools(calls []ToolCall) (string, string, error) {
	var summaries, results []string

	for _, call := range calls {
		switch c := call.(type) {
		case WebSearch:
			text, err := r.runWebSearch(c)
			if err != nil {
				return "", "", err
			}
			if text != "" {
				results = append(results, text)
			}
		case Scrape:
			found, err := r.runScrape(c)
			if err != nil {
				return "", "", err
			}
			summaries = append(summaries, found...)
		default:
			r.log.Warn("Ignoring unsupported tool call", "tool", call.Tool())
		}
	}
	return strings.Join(summaries, "\n\n"), strings.Join(results, "\n\n"), nil
}

func (r *run) runWebSearch(c WebSearch) (string, error) {
	if err := r.emit(statusEvent("Searching the web for more information")); err != nil {
		return "", err
	}
	if err := r.emit(Event{Name: EventSearchStart, Payload: messageList(c.Terms)}); err != nil {
		return "", err
	}

	outcome, err := r.searchDispatcher().Run(r.ctx, c.Terms, r.job.Region)
	if werr := r.warnTermFailures(outcome.Failures); werr != nil {
		return "", werr
	}
	if err != nil {
		// every term failed; this round adds no results
		r.log.Warn("Follow-up search failed", "terms", c.Terms, "error", err)
	}

	offset := r.sources.Len()
	added := r.sources.Add(outcome.Results...)
	if err := r.emit(Event{Name: EventSearchResults, Payload: CountPayload{Count: len(added)}}); err != nil {
		return "", err
	}

	if err := r.searchImages(c.Terms[0]); err != nil {
		return "", err
	}

	if len(added) == 0 {
		return "", nil
	}
	return FormatResults(added, offset), nil
}

func (r *run) searchImages(term string) error {
	if r.p.deps.Images == nil {
		return nil
	}
	imgs, err := r.p.deps.Images.SearchImages(r.ctx, term, r.job.Region, r.p.cfg.ImageCount)
	if err != nil {
		r.log.Warn("Image search failed", "term", term, "error", err)
		return r.emit(warningEvent(fmt.Sprintf("Image search failed for term: %s", term)))
	}
	r.images = append(r.images, imgs...)
	return nil
}

func (r *run) runScrape(c Scrape) ([]string, error) {
	if err := r.emit(statusEvent("Reading web pages")); err != nil {
		return nil, err
	}
	if err := r.emit(Event{Name: EventScrapeStart, Payload: messageList(c.Links)}); err != nil {
		return nil, err
	}

	reqs := make([]FetchRequest, 0, len(c.Links))
	for _, link := range c.Links {
		reqs = append(reqs, FetchRequest{URL: link, Subtopic: c.Subtopic})
	}

	var results []FetchResult
	if r.p.deps.Pages == nil {
		for _, req := range reqs {
			results = append(results, FetchResult{URL: req.URL, Subtopic: req.Subtopic, Err: errors.New("page reading is not configured")})
		}
	} else {
		results = r.fetchDispatcher().Run(r.ctx, reqs)
	}

	var found []string
	for _, res := range results {
		if res.Success {
			found = append(found, res.KnowledgeText())
			continue
		}
		r.log.Warn("Failed to read page", "url", res.URL, "error", res.Err)
		if err := r.emit(warningEvent(fmt.Sprintf("Failed to scrape %s: %v", res.URL, res.Err))); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// --- Finalization ---

func (r *run) complete(a *Artifact) {
	bg := context.WithoutCancel(r.ctx)
	if err := r.p.deps.Store.FinishJob(bg, r.job.ID, StatusComplete, a, ""); err != nil {
		r.fail(fmt.Errorf("failed to store artifact: %w", err))
		return
	}

	ev := completeEvent(a)
	last, elapsed := r.sm.state.Stage, r.p.deps.Now().Sub(r.sm.entered)
	if err := r.sm.finish(StageComplete); err != nil {
		r.log.Error("Invalid final transition", "error", err)
	}
	r.save(bg, r.sm.record(Event{Name: EventComplete, Payload: struct{}{}}.Record(), ""))
	r.rec.StageDuration(last, elapsed)
	r.rec.RunFinished(r.job.Kind, "complete")
	r.log.Info("Generation complete", "length", len(a.Content), "sources", len(a.Sources))
	r.yield(ev)
}

func (r *run) fail(err error) {
	bg := context.WithoutCancel(r.ctx)
	r.log.Error("Generation failed", "stage", r.sm.state.Stage, "error", err)

	ev := errorEvent(err.Error())
	var pe *ParseError
	if errors.As(err, &pe) {
		r.log.Error("Unparsable reflection output", "raw", pe.Raw)
		ev = Event{Name: EventError, Payload: ErrorPayload{Error: err.Error(), Raw: pe.Raw}}
	}

	if ferr := r.p.deps.Store.FinishJob(bg, r.job.ID, StatusError, nil, err.Error()); ferr != nil {
		r.log.Error("Failed to mark job as failed", "error", ferr)
	}
	if ferr := r.sm.finish(StageError); ferr != nil {
		r.log.Error("Invalid final transition", "error", ferr)
	} else {
		r.save(bg, r.sm.record(ev.Record(), r.partial.String()))
	}
	r.rec.RunFinished(r.job.Kind, "error")
	r.yield(ev)
}

// --- Helpers ---

// enter advances the state machine and records the time spent in the
// previous stage.
func (r *run) enter(stage Stage, iteration int) error {
	prev, elapsed, err := r.sm.advance(stage, iteration)
	if err != nil {
		return err
	}
	if prev != "" && prev != stage {
		r.rec.StageDuration(prev, elapsed)
	}
	return nil
}

// emit checkpoints ev and pushes it to the consumer. It returns errStopped
// once the consumer is gone.
func (r *run) emit(ev Event) error {
	r.checkpoint(ev)
	if r.ctx.Err() != nil {
		return errStopped
	}
	if !r.yield(ev) {
		return errStopped
	}
	return nil
}

func (r *run) checkpoint(ev Event) {
	rec := ev.Record()
	switch p := ev.Payload.(type) {
	case ThoughtPayload:
		rec = Event{Name: ev.Name, Payload: ThoughtPayload{Thought: truncateRunes(p.Thought, r.p.cfg.ThoughtMaxChar)}}.Record()
	case []SearchResult:
		rec = Event{Name: ev.Name, Payload: CountPayload{Count: len(p)}}.Record()
	}
	r.save(r.ctx, r.sm.record(rec, r.partial.String()))
}

func (r *run) save(ctx context.Context, st GenerationState) {
	if err := r.p.deps.Store.SaveState(ctx, st); err != nil {
		r.log.Warn("Failed to save generation state", "stage", st.Stage, "error", err)
	}
}

func (r *run) warnTermFailures(failures []TermFailure) error {
	for _, f := range failures {
		r.log.Warn("Search failed", "term", f.Term, "error", f.Err)
		if err := r.emit(warningEvent(fmt.Sprintf("Search failed for term: %s", f.Term))); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) searchDispatcher() SearchDispatcher {
	return SearchDispatcher{Searcher: r.p.deps.Searcher, Workers: r.p.cfg.SearchWorkers, Recorder: r.rec}
}

func (r *run) fetchDispatcher() FetchDispatcher {
	return FetchDispatcher{Fetcher: r.p.deps.Pages, Workers: r.p.cfg.FetchWorkers, Recorder: r.rec}
}

func (r *run) writer() Writer {
	m := r.p.deps.Models
	return Writer{Fast: m.Fast, Reasoning: m.Reasoning, Author: m.Writer, Retry: r.p.cfg.Retry, Now: r.p.deps.Now}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
