package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/core/jurisdiction"
	"github.com/markdave123-py/leaselens/internal/core/retry"
	"github.com/markdave123-py/leaselens/internal/models"
)

var _ Ingestor = (*Pipeline)(nil)

// Pipeline extracts, chunks, embeds and upserts one jurisdiction's corpus.
//
// It is a single sequential job: documents in source order, batches in chunk
// order. A document that cannot be read or extracted is skipped. Anything that
// would write bad vectors into the index aborts the whole run.
type Pipeline struct {
	extractor core.DocumentExtractor
	embedder  core.EmbeddingProvider
	index     core.VectorIndex
	cfg       IngestConfig
	log       *zap.SugaredLogger
}

func NewPipeline(ext core.DocumentExtractor, emb core.EmbeddingProvider, idx core.VectorIndex,
	cfg IngestConfig, log *zap.SugaredLogger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{extractor: ext, embedder: emb, index: idx, cfg: cfg, log: log}, nil
}

// Run ingests every document of src into the namespace of city.
func (p *Pipeline) Run(ctx context.Context, city string, src Source) (Report, error) {
	ns := jurisdiction.Namespace(city)
	rep := Report{Namespace: ns}
	if ns == "" {
		return rep, fmt.Errorf("%w: city is required", core.ErrConfig)
	}

	refs, err := src.List(ctx)
	if err != nil {
		return rep, err
	}
	p.log.Infow("Ingest: starting", "namespace", ns, "documents", len(refs))

	limit := rate.Inf
	if p.cfg.BatchDelay > 0 {
		limit = rate.Every(p.cfg.BatchDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	cityName := jurisdiction.DisplayName(city)

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		name := path.Base(ref)

		data, err := src.Read(ctx, ref)
		if err != nil {
			p.log.Warnw("Ingest: skipping unreadable document", "document", name, "error", err)
			rep.Skipped++
			continue
		}
		doc, err := p.extractor.Extract(ctx, data)
		if err != nil {
			p.log.Warnw("Ingest: skipping document", "document", name, "error", err)
			rep.Skipped++
			continue
		}

		chunks, err := ChunkDocument(name, doc.Text, p.cfg.ChunkSize, p.cfg.Overlap)
		if err != nil {
			return rep, err
		}
		p.log.Infow("Ingest: document chunked", "document", name, "pages", doc.PageCount, "chunks", len(chunks))

		total := (len(chunks) + p.cfg.BatchSize - 1) / p.cfg.BatchSize
		for start := 0; start < len(chunks); start += p.cfg.BatchSize {
			end := min(start+p.cfg.BatchSize, len(chunks))
			if err := limiter.Wait(ctx); err != nil {
				return rep, err
			}
			if err := p.ingestBatch(ctx, ns, cityName, chunks[start:end]); err != nil {
				return rep, fmt.Errorf("ingest %s chunks %d-%d: %w", name, start, end-1, err)
			}
			rep.Batches++
			rep.Chunks += end - start
			p.log.Infow("Ingest: batch embedded", "document", name, "batch", start/p.cfg.BatchSize+1, "of", total)
		}
		rep.Documents++
	}

	p.log.Infow("Ingest: finished", "namespace", ns, "documents", rep.Documents,
		"skipped", rep.Skipped, "chunks", rep.Chunks, "batches", rep.Batches)
	return rep, nil
}

// ingestBatch embeds one batch, retrying on rate limits, and upserts it.
func (p *Pipeline) ingestBatch(ctx context.Context, ns, city string, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := retry.Do(ctx, retry.Policy{
		BackOff:   retry.Fixed(p.cfg.RateLimitCooldown),
		Retryable: func(err error) bool { return errors.Is(err, core.ErrRateLimited) },
		Notify: func(err error, wait time.Duration) {
			p.log.Warnw("Ingest: rate limited, retrying batch", "first_chunk", batch[0].ID, "wait", wait, "error", err)
		},
	}, func(ctx context.Context) error {
		v, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return err
	}

	if err := p.checkVectors(vectors, len(batch)); err != nil {
		return err
	}

	entries := make([]models.VectorEntry, len(batch))
	for i, c := range batch {
		entries[i] = models.VectorEntry{
			ID:     c.ID,
			Values: vectors[i],
			Metadata: models.PassageMetadata{
				Text:   c.Text,
				Source: c.SourceDocument,
				City:   city,
			},
		}
	}
	if err := p.index.Upsert(ctx, ns, entries); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (p *Pipeline) checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", core.ErrProvider, len(vectors), want)
	}
	if len(vectors[0]) == 0 {
		return fmt.Errorf("%w: embedding dimension is 0", core.ErrEmptyResult)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: embedding %d is empty", core.ErrEmptyResult, i)
		}
		if p.cfg.EmbedDim > 0 && len(v) != p.cfg.EmbedDim {
			return fmt.Errorf("%w: embedding %d has dimension %d, index expects %d",
				core.ErrConfig, i, len(v), p.cfg.EmbedDim)
		}
	}
	return nil
}
