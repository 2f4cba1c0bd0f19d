package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/leaselens/internal/config"
	"github.com/markdave123-py/leaselens/internal/core/analysis_engine"
	db "github.com/markdave123-py/leaselens/internal/core/database"
	"github.com/markdave123-py/leaselens/internal/core/llm"
	"github.com/markdave123-py/leaselens/internal/services"
)

// Version is stamped at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

type App struct {
	Providers *Providers
	DBClient  *db.DatabaseClient
	LLM       *llm.GeminiLLM
	Server    *Server
	log       *zap.SugaredLogger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	providers, err := NewProviders(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}
	if providers.SQL == nil {
		_ = providers.Close(ctx)
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	dbClient := db.NewDatabaseClient(providers.SQL)

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		_ = providers.Close(ctx)
		return nil, fmt.Errorf("couldn't initialize the generator: %w", err)
	}

	if providers.Extractor.Degraded() {
		log.Warnw("pdftotext not found, PDF extraction uses the pure-Go reader")
	}

	deps := analysis_engine.Deps{
		DB:        dbClient,
		Extractor: providers.Extractor,
		Embedder:  providers.Embedder,
		Index:     providers.Index,
		LLM:       llmProvider,
	}
	archiveBucket := ""
	if providers.Objects != nil && cfg.BucketName != "" {
		deps.Objects = providers.Objects
		archiveBucket = cfg.BucketName
	}
	pipeline := analysis_engine.NewPipeline(deps, analysis_engine.Config{
		StarterCredits: cfg.StarterCredits,
		DefaultCity:    cfg.DefaultCity,
		TopK:           analysis_engine.DefaultTopK,
		ArchiveBucket:  archiveBucket,
	}, log)

	svc := Services{
		Users:    services.NewUserService(dbClient, cfg.StarterCredits, cfg.DefaultCity),
		Scans:    services.NewScanService(dbClient),
		Payments: services.NewPaymentService(dbClient, nil, cfg.DefaultProductCredits, log),
	}

	server := NewServer(cfg, pipeline, svc, log)

	return &App{
		Providers: providers,
		DBClient:  dbClient,
		LLM:       llmProvider,
		Server:    server,
		log:       log,
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.Providers != nil {
		if err := a.Providers.Close(ctx); err != nil {
			a.log.Warnw("error while closing clients", "error", err)
		}
	}
}
