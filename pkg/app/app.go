// Package app wires configuration into a ready pipeline for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mikeboe/research-writer/pkg/clients"
	"github.com/mikeboe/research-writer/pkg/config"
	"github.com/mikeboe/research-writer/pkg/database"
	"github.com/mikeboe/research-writer/pkg/lease"
	"github.com/mikeboe/research-writer/pkg/memstore"
	"github.com/mikeboe/research-writer/pkg/metrics"
	"github.com/mikeboe/research-writer/pkg/research"
	"github.com/mikeboe/research-writer/pkg/research/tools"
	"github.com/mikeboe/research-writer/pkg/server"
	"github.com/mikeboe/research-writer/pkg/splitter"
)

const httpTimeout = 30 * time.Second

// App holds the wired components and closes them in reverse order.
type App struct {
	Pipeline *research.Pipeline
	Store    research.Store
	DB       *database.PostgresDB
	Metrics  *metrics.Metrics
	closers  []func()
}

// Build connects the store, lease, models and tools described by cfg.
// Postgres and Redis are used when their URLs are set; otherwise jobs and
// leases live in memory.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Metrics: metrics.New()}
	deps := research.Deps{Logger: logger, Recorder: a.Metrics}

	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		a.DB = db
		a.Store = db
		deps.JobLogger = server.JobLoggers(logger, db, config.ParseLevel(cfg.LogLevel))
	} else {
		logger.Warn("DATABASE_URL not set, jobs are kept in memory")
		a.Store = memstore.New()
	}
	deps.Store = a.Store

	if cfg.RedisURL != "" {
		r, err := lease.NewRedis(ctx, cfg.RedisURL, cfg.LeaseTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = r.Close() })
		deps.Lease = r
	} else {
		deps.Lease = lease.NewMemory(cfg.LeaseTTL)
	}

	models, err := clients.NewModels(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	deps.Models = models

	httpClient := &http.Client{Timeout: httpTimeout}
	switch cfg.SearchProvider {
	case config.SearchArxiv:
		arxiv := tools.NewArxiv(cfg.SearchResultCount)
		arxiv.Client = httpClient
		deps.Searcher = arxiv
	default:
		if cfg.BraveAPIKey == "" {
			logger.Warn("BRAVE_API_KEY not set, web searches will fail")
		}
		brave := tools.NewBrave(cfg.BraveAPIKey, cfg.SearchResultCount)
		brave.Client = httpClient
		deps.Searcher = brave
		deps.Images = brave
	}

	pages := &tools.PageReader{
		Client:   httpClient,
		Model:    models.Fast,
		Splitter: splitter.NewRecursiveCharacterTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		MaxChars: cfg.FetchMaxChars,
		Logger:   logger,
	}
	if cfg.MistralAPIKey != "" {
		pdf := tools.NewPDFReader(cfg.MistralAPIKey)
		pdf.Client = &http.Client{Timeout: 2 * httpTimeout}
		pages.PDF = pdf
	}
	deps.Pages = pages

	p, err := research.NewPipeline(deps, cfg.Research())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pipeline = p
	return a, nil
}

// Logs returns the persisted job log reader, or nil without a database.
func (a *App) Logs() server.LogReader {
	if a.DB == nil {
		return nil
	}
	return a.DB
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
