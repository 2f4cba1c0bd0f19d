package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/markdave123-py/leaselens/internal/core"
)

var _ core.EmbeddingProvider = (*CachedEmbedder)(nil)

const defaultCachePrefix = "leaselens:embed:"

// CachedEmbedder memoises EmbedOne in Redis. The analysis query string is
// fixed per jurisdiction, so nearly every scan hits the cache. Batches are
// passed straight through. Redis failures fall back to the wrapped provider.
type CachedEmbedder struct {
	next   core.EmbeddingProvider
	rdb    redis.UniversalClient
	model  string
	prefix string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewCachedEmbedder(next core.EmbeddingProvider, rdb redis.UniversalClient, model string, ttl time.Duration, log *zap.SugaredLogger) *CachedEmbedder {
	return &CachedEmbedder{next: next, rdb: rdb, model: model, prefix: defaultCachePrefix, ttl: ttl, log: log}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jerr := json.Unmarshal(raw, &vec); jerr == nil && len(vec) > 0 {
			return vec, nil
		}
		c.log.Warnw("EmbedCache: dropping undecodable entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.Warnw("EmbedCache: read failed, calling provider", "error", err)
	}

	vec, err := c.next.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}

	if payload, jerr := json.Marshal(vec); jerr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.log.Warnw("EmbedCache: write failed", "error", serr)
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedBatch(ctx, texts)
}
