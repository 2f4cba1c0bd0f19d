package ingestion_engine

import (
	"fmt"
	"time"

	"github.com/markdave123-py/leaselens/internal/core"
)

// IngestConfig tunes the ingestion pipeline.
//
// ChunkSize, Overlap:  chunker parameters in characters (1000 / 200).
// BatchSize:          chunks per embedding request, 1..50.
// BatchDelay:         minimum spacing between embedding requests; 0 disables throttling.
// RateLimitCooldown:  fixed wait before retrying a rate-limited batch.
// EmbedDim:           expected vector length; 0 skips the check.
type IngestConfig struct {
	ChunkSize         int
	Overlap           int
	BatchSize         int
	BatchDelay        time.Duration
	RateLimitCooldown time.Duration
	EmbedDim          int
}

const MaxBatchSize = 50

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:         DefaultChunkSize,
		Overlap:           DefaultChunkOverlap,
		BatchSize:         10,
		BatchDelay:        5 * time.Second,
		RateLimitCooldown: 60 * time.Second,
	}
}

func (c IngestConfig) Validate() error {
	if err := ValidateChunking(c.ChunkSize, c.Overlap); err != nil {
		return err
	}
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: batch size must be in 1..%d, got %d", core.ErrConfig, MaxBatchSize, c.BatchSize)
	}
	if c.BatchDelay < 0 || c.RateLimitCooldown < 0 {
		return fmt.Errorf("%w: delays must not be negative", core.ErrConfig)
	}
	if c.EmbedDim < 0 {
		return fmt.Errorf("%w: embedding dimension must not be negative", core.ErrConfig)
	}
	return nil
}
