// Package bootstrap wires the application: configuration, logging, redis,
// the secure fetcher, the diagnosis pipeline, and the HTTP server, then runs
// everything under one errgroup with graceful shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"smartagri-server-go/internal/app/queue"
	"smartagri-server-go/internal/core/fetch"
	"smartagri-server-go/internal/domain/classify"
	"smartagri-server-go/internal/domain/diagnosis"
	"smartagri-server-go/internal/domain/eventbus"
	"smartagri-server-go/internal/domain/objectstore"
	"smartagri-server-go/internal/domain/rag"
	"smartagri-server-go/internal/domain/report"
	"smartagri-server-go/internal/domain/taxonomy"
	"smartagri-server-go/internal/platform/config"
	"smartagri-server-go/internal/platform/errors"
	"smartagri-server-go/internal/platform/logging"
	"smartagri-server-go/internal/platform/storage"
	transporthttp "smartagri-server-go/internal/transport/http"
	"smartagri-server-go/internal/transport/http/webapi"
)

// Version is stamped at build time.
var Version = "dev"

// App holds every wired component.
type App struct {
	cfg    *config.Config
	logger *logging.Logger
	slog   *slog.Logger

	rdb       *redis.Client
	queue     *queue.Queue
	transport *fetch.Transport
	fetcher   *fetch.Fetcher
	taxonomy  *taxonomy.Service
	records   *storage.Repository
	store     *objectstore.Store
	retriever *rag.Retriever
	reporter  *report.Generator
	bus       *eventbus.Bus
	server    *transporthttp.Server
}

// New runs the init steps in dependency order.
func New(ctx context.Context) (*App, error) {
	app := &App{}
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"config", app.initConfig},
		{"logging", app.initLogging},
		{"redis", app.initRedis},
		{"taxonomy", app.initTaxonomy},
		{"fetcher", app.initFetcher},
		{"intelligence", app.initIntelligence},
		{"object storage", app.initObjectStore},
		{"records", app.initRecords},
		{"eventbus", app.initEventBus},
		{"http", app.initHTTP},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return nil, errors.Wrap(errors.KindBootstrap, "bootstrap.New",
				fmt.Sprintf("init %s", step.name), err)
		}
	}
	return app, nil
}

func (a *App) initConfig(context.Context) error {
	result, err := config.NewLoader().Load()
	if err != nil {
		return err
	}
	a.cfg = result.Config
	return nil
}

func (a *App) initLogging(context.Context) error {
	logger, err := logging.New(logging.Config{
		Level:  a.cfg.Log.Level,
		Format: a.cfg.Log.Format,
		Dir:    a.cfg.Log.Dir,
		File:   a.cfg.Log.File,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.slog = logger.Slog()
	a.slog.Info("starting smartagri-server", "version", Version)
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	a.rdb = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Username: a.cfg.Redis.Username,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis at %s: %w", a.cfg.Redis.Addr, err)
	}
	a.queue = queue.New(a.rdb, a.cfg.Queue.PendingKey, a.cfg.Queue.ResultTTL.Std())
	return nil
}

func (a *App) initTaxonomy(context.Context) error {
	svc, err := taxonomy.Load(a.cfg.Taxonomy.Path)
	if err != nil {
		return err
	}
	a.taxonomy = svc
	a.slog.Info("taxonomy loaded",
		"path", a.cfg.Taxonomy.Path, "entries", len(svc.All()), "version", svc.Metadata().Version)
	return nil
}

func (a *App) initFetcher(context.Context) error {
	validator := fetch.NewValidator(a.cfg.Fetch.DNSTimeout.Std(), a.slog)
	a.transport = fetch.NewTransport()
	a.fetcher = fetch.NewFetcher(validator, a.transport, fetch.Policy{
		AllowedContentTypes: a.cfg.Fetch.AllowedContentTypes,
		MaxBytes:            a.cfg.Fetch.MaxBytes,
		Timeout:             a.cfg.Fetch.Timeout.Std(),
	}, a.slog)
	return nil
}

// initIntelligence wires the OpenAI-backed retriever and report generator.
// Without an API key the pipeline still runs; results just carry no report.
func (a *App) initIntelligence(context.Context) error {
	if a.cfg.LLM.APIKey == "" {
		a.slog.Warn("no LLM api key configured, reports and retrieval disabled")
		return nil
	}

	clientCfg := openai.DefaultConfig(a.cfg.LLM.APIKey)
	if a.cfg.LLM.BaseURL != "" {
		clientCfg.BaseURL = a.cfg.LLM.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	embedder := rag.NewOpenAIEmbedder(client, a.cfg.RAG.EmbeddingModel)
	retriever, err := rag.NewRetriever(a.cfg.RAG.IndexPath, embedder, a.cfg.RAG.TopK)
	if err != nil {
		return err
	}
	a.retriever = retriever
	a.slog.Info("knowledge index loaded", "path", a.cfg.RAG.IndexPath, "documents", retriever.Len())

	a.reporter = report.NewGenerator(client, a.cfg.LLM.ModelName,
		float32(a.cfg.LLM.Temperature), a.cfg.LLM.MaxTokens, a.slog)
	return nil
}

// initObjectStore is best-effort: without reachable storage the upload
// endpoint is disabled but diagnosis of external URLs still works.
func (a *App) initObjectStore(ctx context.Context) error {
	storeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := objectstore.New(storeCtx, a.cfg.ObjectStore, a.slog)
	if err != nil {
		a.slog.Warn("object storage unavailable, uploads disabled", "error", err)
		return nil
	}
	a.store = store
	return nil
}

func (a *App) initRecords(context.Context) error {
	repo, err := storage.NewRepository(a.cfg.Database.Path)
	if err != nil {
		return err
	}
	a.records = repo
	return nil
}

func (a *App) initEventBus(context.Context) error {
	a.bus = eventbus.New()
	if err := a.bus.SubscribeAsync(eventbus.TopicDiagnosisCompleted, func(taskID, diagnosisName string) {
		a.slog.Info("diagnosis event", "task_id", taskID, "diagnosis", diagnosisName)
	}); err != nil {
		return err
	}
	if err := a.bus.SubscribeAsync(eventbus.TopicDiagnosisFailed, func(taskID, reason string) {
		a.slog.Warn("diagnosis failed event", "task_id", taskID, "reason", reason)
	}); err != nil {
		return err
	}
	return nil
}

func (a *App) initHTTP(context.Context) error {
	services := []transporthttp.RouteRegistrar{
		webapi.NewDiagnoseService(a.queue, a.slog),
		webapi.NewTaxonomyService(a.taxonomy),
		webapi.NewSystemService(a.records, Version),
	}
	if a.store != nil {
		services = append(services, webapi.NewUploadService(a.store, a.bus, a.slog))
	}
	a.server = transporthttp.NewServer(a.cfg, a.slog, services...)
	return nil
}

// Run serves until a signal arrives or a component fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	classifier := classify.NewMockClassifier(a.slog)
	workerOpts := []diagnosis.WorkerOption{
		diagnosis.WithRecorder(a.records),
		diagnosis.WithBus(a.bus),
	}
	if a.retriever != nil {
		workerOpts = append(workerOpts, diagnosis.WithRetriever(a.retriever))
	}
	if a.reporter != nil {
		workerOpts = append(workerOpts, diagnosis.WithReporter(a.reporter))
	}

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < a.cfg.Queue.Concurrency; i++ {
		worker := diagnosis.NewWorker(a.queue, a.fetcher, classifier, a.taxonomy, a.slog, workerOpts...)
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return a.server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	a.slog.Info("shutting down")
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	if a.transport != nil {
		a.transport.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.logger.Close()
}
