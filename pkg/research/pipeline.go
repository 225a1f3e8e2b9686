package research

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// Models are the generation backends used by a pipeline. Fast serves term
// generation and suggestions, Reasoning serves reflection and planning, and
// Writer streams summaries and articles.
type Models struct {
	Fast      llms.Model
	Reasoning llms.Model
	Writer    llms.Model
}

// Deps are the collaborators of a Pipeline. Lease, Images, Pages, JobLogger
// and Recorder are optional.
type Deps struct {
	Store     Store
	Lease     Lease
	Models    Models
	Searcher  Searcher
	Images    ImageSearcher
	Pages     PageFetcher
	Logger    *slog.Logger
	JobLogger func(jobID string) *slog.Logger
	Recorder  Recorder
	Now       func() time.Time
}

// Pipeline runs generation jobs. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	deps Deps
	cfg  Config
}

func NewPipeline(deps Deps, cfg Config) (*Pipeline, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline requires a store")
	case deps.Searcher == nil:
		return nil, errors.New("pipeline requires a searcher")
	case deps.Models.Fast == nil || deps.Models.Reasoning == nil || deps.Models.Writer == nil:
		return nil, errors.New("pipeline requires fast, reasoning and writer models")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Recorder = recorderOrNop(deps.Recorder)

	def := DefaultConfig()
	if cfg.MaxIterations < 0 {
		cfg.MaxIterations = 0
	}
	if cfg.FlushWords < 1 {
		cfg.FlushWords = def.FlushWords
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = def.Retry
	}
	if cfg.ThoughtMaxChar < 1 {
		cfg.ThoughtMaxChar = def.ThoughtMaxChar
	}
	if cfg.ImageCount < 1 {
		cfg.ImageCount = def.ImageCount
	}
	return &Pipeline{deps: deps, cfg: cfg}, nil
}

// SubmitRequest creates a job without running it.
type SubmitRequest struct {
	Topic  string
	Kind   JobKind
	Region string
	ChatID string
}

// Submit validates req and stores a pending job.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (Job, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return Job{}, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	kind := req.Kind
	switch kind {
	case "":
		kind = KindArticle
	case KindArticle, KindAnswer:
	default:
		return Job{}, fmt.Errorf("%w: unknown job kind %q", ErrInvalidInput, req.Kind)
	}

	now := p.deps.Now()
	job, err := p.deps.Store.CreateJob(ctx, Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Topic:     topic,
		Region:    req.Region,
		ChatID:    req.ChatID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Job{}, fmt.Errorf("failed to create job: %w", err)
	}
	p.deps.Logger.Info("Job submitted", "job_id", job.ID, "kind", job.Kind, "topic", job.Topic)
	return job, nil
}

// StartRequest names the job to stream. Without a JobID a new job is
// submitted from the remaining fields. History overrides the chat history
// stored for the job's session.
type StartRequest struct {
	TopicOrQuery string
	JobID        string
	Kind         JobKind
	Region       string
	ChatID       string
	History      []HistoryTurn
}

// Start returns the event stream of a job. Input and lookup errors are
// returned before any event. A finished job replays its final event, an
// unfinished claimed job reports an in_progress snapshot, and only a pending
// job is claimed and run. The run happens while the sequence is consumed;
// stopping early leaves the job resumable.
func (p *Pipeline) Start(ctx context.Context, req StartRequest) (iter.Seq[Event], error) {
	var (
		job Job
		err error
	)
	if req.JobID == "" {
		job, err = p.Submit(ctx, SubmitRequest{
			Topic:  req.TopicOrQuery,
			Kind:   req.Kind,
			Region: req.Region,
			ChatID: req.ChatID,
		})
	} else {
		job, err = p.deps.Store.GetJob(ctx, req.JobID)
	}
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case StatusComplete:
		return once(completeEvent(job.Artifact)), nil
	case StatusError:
		return once(errorEvent(job.Error)), nil
	case StatusGenerating:
		return once(p.inProgress(ctx, job)), nil
	}

	return func(yield func(Event) bool) {
		claimed, err := p.deps.Store.ClaimJob(ctx, job.ID)
		if err != nil {
			p.deps.Logger.Error("Failed to claim job", "job_id", job.ID, "error", err)
			yield(errorEvent(fmt.Sprintf("failed to claim job: %v", err)))
			return
		}
		if !claimed {
			job.Status = StatusGenerating
			yield(p.inProgress(ctx, job))
			return
		}
		job.Status = StatusGenerating
		p.execute(ctx, job, req.History, yield)
	}, nil
}

// Replay returns the stored outcome of job without running anything.
func (p *Pipeline) Replay(ctx context.Context, jobID string) (Event, error) {
	job, err := p.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return Event{}, err
	}
	switch job.Status {
	case StatusComplete:
		return completeEvent(job.Artifact), nil
	case StatusError:
		return errorEvent(job.Error), nil
	default:
		return p.inProgress(ctx, job), nil
	}
}

func (p *Pipeline) inProgress(ctx context.Context, job Job) Event {
	payload := InProgressPayload{Topic: job.Topic, Status: job.Status}

	st, err := p.deps.Store.GetState(ctx, job.ID)
	switch {
	case err == nil:
		payload.Stage = st.Stage
		payload.Iteration = st.Iteration
		payload.PartialContent = st.PartialContent
		payload.LastEvent = st.LastEvent
	case !errors.Is(err, ErrJobNotFound):
		p.deps.Logger.Warn("Failed to load generation state", "job_id", job.ID, "error", err)
	}

	if p.deps.Lease != nil {
		held, err := p.deps.Lease.Held(ctx, job.ID)
		if err != nil {
			p.deps.Logger.Warn("Failed to check job lease", "job_id", job.ID, "error", err)
		}
		payload.Active = held
	}
	return Event{Name: EventInProgress, Payload: payload}
}

func (p *Pipeline) jobLogger(jobID string) *slog.Logger {
	if p.deps.JobLogger != nil {
		if l := p.deps.JobLogger(jobID); l != nil {
			return l
		}
	}
	return p.deps.Logger.With("job_id", jobID)
}

func completeEvent(a *Artifact) Event {
	if a == nil {
		return errorEvent("job completed without an artifact")
	}
	return Event{Name: EventComplete, Payload: a}
}

func once(ev Event) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		yield(ev)
	}
}
