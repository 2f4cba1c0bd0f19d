package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/markdave123-py/leaselens/internal/config"
	"github.com/markdave123-py/leaselens/internal/core"
	db "github.com/markdave123-py/leaselens/internal/core/database"
	"github.com/markdave123-py/leaselens/internal/core/ingestion_engine"
	"github.com/markdave123-py/leaselens/internal/core/llm"
	objectclient "github.com/markdave123-py/leaselens/internal/core/object-client"
	vectorclient "github.com/markdave123-py/leaselens/internal/core/vector-client"
)

// Providers are the external clients shared by the API server and the
// ingest command. SQL is nil without DATABASE_URL; Objects is nil without
// AWS credentials.
type Providers struct {
	SQL       *sql.DB
	Embedder  core.EmbeddingProvider
	Index     core.VectorIndex
	Objects   core.ObjectClient
	Extractor *ingestion_engine.PDFExtractor

	closers []func(context.Context) error
}

func NewProviders(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (_ *Providers, err error) {
	p := &Providers{}
	defer func() {
		if err != nil {
			_ = p.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.DatabaseURL != "" {
		p.SQL, err = db.Open(ctx, cfg.DatabaseURL, cfg.SslCertPath)
		if err != nil {
			return nil, err
		}
		p.onClose(func(context.Context) error { return p.SQL.Close() })
		log.Infow("Database initialized and ready.")
	}

	if cfg.AwsAccessKey != "" {
		s3c, err := objectclient.NewS3Client(ctx, objectclient.S3Config{
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
			Region:    cfg.AwsRegion,
		})
		if err != nil {
			return nil, err
		}
		p.Objects = s3c
		log.Infow("Object client initialized and ready.", "region", cfg.AwsRegion)
	}

	gemini, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}
	p.onClose(func(context.Context) error { return gemini.Close() })
	p.Embedder = gemini

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		p.onClose(func(context.Context) error { return rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnw("Redis unreachable, embeddings will not be cached until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		p.Embedder = llm.NewCachedEmbedder(gemini, rdb, gemini.Model(), cfg.EmbedCacheTTL, log)
		log.Infow("Embedding cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.EmbedCacheTTL)
	}

	switch cfg.VectorBackend {
	case config.VectorBackendMilvus:
		mi, err := vectorclient.NewMilvusIndex(ctx, vectorclient.MilvusConfig{
			Address:    cfg.MilvusAddress,
			Username:   cfg.MilvusUsername,
			Password:   cfg.MilvusPassword,
			Collection: cfg.MilvusCollection,
			Dim:        cfg.EmbedDim,
		}, log)
		if err != nil {
			return nil, err
		}
		p.onClose(mi.Close)
		p.Index = mi
	case config.VectorBackendPgvector:
		if p.SQL == nil {
			return nil, fmt.Errorf("%w: pgvector backend needs DATABASE_URL", core.ErrConfig)
		}
		p.Index = db.NewPgVectorIndex(p.SQL, cfg.EmbedDim)
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", core.ErrConfig, cfg.VectorBackend)
	}
	log.Infow("Vector index ready", "backend", cfg.VectorBackend, "dim", cfg.EmbedDim)

	p.Extractor = ingestion_engine.NewPDFExtractor(log)
	return p, nil
}

func (p *Providers) onClose(fn func(context.Context) error) {
	p.closers = append(p.closers, fn)
}

// Close releases clients in reverse order of creation.
func (p *Providers) Close(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i](ctx))
	}
	p.closers = nil
	return errors.Join(errs...)
}
