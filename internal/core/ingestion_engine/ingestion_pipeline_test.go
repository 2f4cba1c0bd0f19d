package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

// memSource serves documents from memory; a nil body fails Read.
type memSource struct {
	names []string
	docs  map[string][]byte
}

func (s memSource) List(context.Context) ([]string, error) { return s.names, nil }

func (s memSource) Read(_ context.Context, ref string) ([]byte, error) {
	if b := s.docs[ref]; b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("open %s: no such file", ref)
}

// textExtractor treats the bytes as the document text; "corrupt" fails.
type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, data []byte) (*models.ExtractedDocument, error) {
	if string(data) == "corrupt" {
		return nil, fmt.Errorf("%w: bad xref", core.ErrExtraction)
	}
	return &models.ExtractedDocument{Text: string(data), PageCount: 1}, nil
}

// scriptedEmbedder returns errors from script in order, then dim-length vectors.
type scriptedEmbedder struct {
	mu     sync.Mutex
	dim    int
	script []error
	calls  [][]string
}

func (e *scriptedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	v, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (e *scriptedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, texts)
	if len(e.script) > 0 {
		err := e.script[0]
		e.script = e.script[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

type recordingIndex struct {
	mu      sync.Mutex
	upserts map[string][]models.VectorEntry
	err     error
}

func (x *recordingIndex) Upsert(_ context.Context, ns string, entries []models.VectorEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return x.err
	}
	if x.upserts == nil {
		x.upserts = map[string][]models.VectorEntry{}
	}
	x.upserts[ns] = append(x.upserts[ns], entries...)
	return nil
}

func (x *recordingIndex) Query(context.Context, string, []float32, int) ([]models.Match, error) {
	return nil, nil
}

func testConfig() IngestConfig {
	cfg := DefaultIngestConfig()
	cfg.BatchSize = 2
	cfg.BatchDelay = 0
	cfg.RateLimitCooldown = 0
	cfg.EmbedDim = 4
	return cfg
}

func newTestPipeline(t *testing.T, emb core.EmbeddingProvider, idx core.VectorIndex) *Pipeline {
	t.Helper()
	p, err := NewPipeline(textExtractor{}, emb, idx, testConfig(), zap.NewNop().Sugar())
	require.NoError(t, err)
	return p
}

func TestPipelineIngestsAndSkipsBadDocuments(t *testing.T) {
	emb := &scriptedEmbedder{dim: 4}
	idx := &recordingIndex{}
	src := memSource{
		names: []string{"housing act.pdf", "broken.pdf", "missing.pdf"},
		docs: map[string][]byte{
			"housing act.pdf": []byte(strings.Repeat("a", 2600)),
			"broken.pdf":      []byte("corrupt"),
		},
	}

	rep, err := newTestPipeline(t, emb, idx).Run(context.Background(), "New York", src)
	require.NoError(t, err)

	assert.Equal(t, Report{Namespace: "new-york", Documents: 1, Skipped: 2, Chunks: 4, Batches: 2}, rep)

	entries := idx.upserts["new-york"]
	require.Len(t, entries, 4)
	assert.Equal(t, "housing_act-chunk-0", entries[0].ID)
	assert.Equal(t, "housing_act-chunk-3", entries[3].ID)
	assert.Equal(t, models.PassageMetadata{Text: strings.Repeat("a", 1000), Source: "housing act.pdf", City: "New York"}, entries[0].Metadata)
}

func TestPipelineLogsBatchProgress(t *testing.T) {
	observed, logs := observer.New(zap.InfoLevel)
	p, err := NewPipeline(textExtractor{}, &scriptedEmbedder{dim: 4}, &recordingIndex{}, testConfig(), zap.New(observed).Sugar())
	require.NoError(t, err)

	src := memSource{names: []string{"a.pdf"}, docs: map[string][]byte{"a.pdf": []byte(strings.Repeat("b", 3400))}}
	rep, err := p.Run(context.Background(), "london", src)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Batches)

	batches := logs.FilterMessage("Ingest: batch embedded").All()
	require.Len(t, batches, 3)
	for i, entry := range batches {
		fields := entry.ContextMap()
		assert.Equal(t, "a.pdf", fields["document"])
		assert.EqualValues(t, i+1, fields["batch"])
		assert.EqualValues(t, 3, fields["of"])
	}
}

func TestPipelineAbortsOnEmptyFirstVector(t *testing.T) {
	emb := &scriptedEmbedder{dim: 0}
	idx := &recordingIndex{}
	src := memSource{names: []string{"a.pdf"}, docs: map[string][]byte{"a.pdf": []byte("short lease law")}}

	_, err := newTestPipeline(t, emb, idx).Run(context.Background(), "london", src)

	assert.ErrorIs(t, err, core.ErrEmptyResult)
	assert.Empty(t, idx.upserts)
}

func TestPipelineRetriesRateLimitedBatch(t *testing.T) {
	emb := &scriptedEmbedder{dim: 4, script: []error{
		fmt.Errorf("%w: 429", core.ErrRateLimited),
		fmt.Errorf("%w: 429", core.ErrRateLimited),
	}}
	idx := &recordingIndex{}
	src := memSource{names: []string{"a.pdf"}, docs: map[string][]byte{"a.pdf": []byte("section 21 notice")}}

	rep, err := newTestPipeline(t, emb, idx).Run(context.Background(), "london", src)
	require.NoError(t, err)

	require.Len(t, emb.calls, 3)
	assert.Equal(t, emb.calls[0], emb.calls[2], "the same batch is retried")
	assert.Equal(t, 1, rep.Batches)
	assert.Len(t, idx.upserts["london"], 1)
}

func TestPipelineAbortsOnProviderError(t *testing.T) {
	emb := &scriptedEmbedder{dim: 4, script: []error{fmt.Errorf("%w: 500", core.ErrProvider)}}
	idx := &recordingIndex{}
	src := memSource{names: []string{"a.pdf", "b.pdf"}, docs: map[string][]byte{
		"a.pdf": []byte("one"),
		"b.pdf": []byte("two"),
	}}

	rep, err := newTestPipeline(t, emb, idx).Run(context.Background(), "london", src)
	assert.ErrorIs(t, err, core.ErrProvider)
	assert.Len(t, emb.calls, 1)
	assert.Zero(t, rep.Documents)
	assert.Empty(t, idx.upserts)
}

func TestPipelineAbortsOnDimensionMismatch(t *testing.T) {
	emb := &scriptedEmbedder{dim: 3}
	idx := &recordingIndex{}
	src := memSource{names: []string{"a.pdf"}, docs: map[string][]byte{"a.pdf": []byte("one")}}

	_, err := newTestPipeline(t, emb, idx).Run(context.Background(), "london", src)
	assert.ErrorIs(t, err, core.ErrConfig)
	assert.Empty(t, idx.upserts)
}

func TestPipelineAbortsOnUpsertError(t *testing.T) {
	emb := &scriptedEmbedder{dim: 4}
	idx := &recordingIndex{err: errors.New("connection refused")}
	src := memSource{names: []string{"a.pdf"}, docs: map[string][]byte{"a.pdf": []byte("one")}}

	_, err := newTestPipeline(t, emb, idx).Run(context.Background(), "london", src)
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewPipelineRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 51
	_, err := NewPipeline(textExtractor{}, &scriptedEmbedder{}, &recordingIndex{}, cfg, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, core.ErrConfig)

	cfg = testConfig()
	cfg.Overlap = cfg.ChunkSize
	_, err = NewPipeline(textExtractor{}, &scriptedEmbedder{}, &recordingIndex{}, cfg, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, core.ErrConfig)
}
