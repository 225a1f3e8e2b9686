package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mikeboe/research-writer/pkg/database"
	"github.com/mikeboe/research-writer/pkg/metrics"
	"github.com/mikeboe/research-writer/pkg/research"
	"github.com/mikeboe/research-writer/pkg/research/tools"
)

// LogReader returns the persisted log lines of a job.
type LogReader interface {
	JobLogs(ctx context.Context, jobID string) ([]database.LogEntry, error)
}

// Service is the application layer behind the HTTP handler.
type Service struct {
	Pipeline *research.Pipeline
	Store    research.Store
	Logs     LogReader
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func NewService(p *research.Pipeline, store research.Store, logs LogReader, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Pipeline: p, Store: store, Logs: logs, Metrics: m, Logger: logger}
}

type CreateJobRequest struct {
	Topic  string `json:"topic"`
	Kind   string `json:"kind"`
	Region string `json:"region"`
	ChatID string `json:"chat_id"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (research.Job, error) {
	return s.Pipeline.Submit(ctx, research.SubmitRequest{
		Topic:  req.Topic,
		Kind:   research.JobKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Region: tools.NormalizeRegion(req.Region),
		ChatID: req.ChatID,
	})
}

func (s *Service) GetJob(ctx context.Context, id string) (research.Job, error) {
	return s.Store.GetJob(ctx, id)
}

func (s *Service) GetJobLogs(ctx context.Context, id string) ([]database.LogEntry, error) {
	if _, err := s.Store.GetJob(ctx, id); err != nil {
		return nil, err
	}
	if s.Logs == nil {
		return nil, nil
	}
	return s.Logs.JobLogs(ctx, id)
}

// StreamJob resumes or runs an existing job.
func (s *Service) StreamJob(ctx context.Context, id string) (iter.Seq[research.Event], error) {
	return s.Pipeline.Start(ctx, research.StartRequest{JobID: id})
}

// StreamSearch creates an answer job for query and runs it.
func (s *Service) StreamSearch(ctx context.Context, query, chatID, region string) (iter.Seq[research.Event], error) {
	return s.Pipeline.Start(ctx, research.StartRequest{
		TopicOrQuery: query,
		Kind:         research.KindAnswer,
		Region:       tools.NormalizeRegion(region),
		ChatID:       chatID,
	})
}

func (s *Service) CreateSession(ctx context.Context, userID string) (research.ChatSession, error) {
	if strings.TrimSpace(userID) == "" {
		return research.ChatSession{}, fmt.Errorf("%w: user_id is required", research.ErrInvalidInput)
	}
	return s.Store.CreateSession(ctx, userID)
}

func (s *Service) ChatHistory(ctx context.Context, chatID string) ([]research.HistoryTurn, error) {
	return s.Store.ChatHistory(ctx, chatID)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, research.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, research.ErrJobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
