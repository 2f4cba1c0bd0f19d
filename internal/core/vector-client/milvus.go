package vectorclient

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

var _ core.VectorIndex = (*MilvusIndex)(nil)

const (
	fieldID        = "id"
	fieldEmbedding = "embedding"
	fieldText      = "text"
	fieldSource    = "source"
	fieldCity      = "city"

	maxIDLen   = 512
	maxTextLen = 8192
	maxMetaLen = 512
)

var partitionUnsafe = regexp.MustCompile(`[^a-z0-9_]`)

// MilvusConfig holds connection settings for MilvusIndex.
type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Dim        int
}

// MilvusIndex keeps every jurisdiction in one collection, one partition per
// namespace. The collection and partitions are created on first use.
type MilvusIndex struct {
	client *milvusclient.Client
	cfg    MilvusConfig
	log    *zap.SugaredLogger

	mu         sync.Mutex
	ready      bool
	partitions map[string]bool
}

func NewMilvusIndex(ctx context.Context, cfg MilvusConfig, log *zap.SugaredLogger) (*MilvusIndex, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("%w: milvus index needs a positive dimension", core.ErrConfig)
	}
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	log.Infow("Connected to Milvus", "address", cfg.Address, "collection", cfg.Collection)
	return &MilvusIndex{client: c, cfg: cfg, log: log, partitions: map[string]bool{}}, nil
}

func (m *MilvusIndex) Close(ctx context.Context) error {
	return m.client.Close(ctx)
}

// PartitionName maps a namespace onto Milvus's partition naming rules.
func PartitionName(namespace string) string {
	return "ns_" + partitionUnsafe.ReplaceAllString(strings.ToLower(namespace), "_")
}

// ensureCollection creates, indexes and loads the collection once per process.
func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	if m.ready {
		return nil
	}
	name := m.cfg.Collection

	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithDescription("jurisdiction legal passages").
			WithField(entity.NewField().
				WithName(fieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxIDLen).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(fieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(m.cfg.Dim))).
			WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLen)).
			WithField(entity.NewField().WithName(fieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxMetaLen)).
			WithField(entity.NewField().WithName(fieldCity).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxMetaLen))

		if err := m.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewIvfFlatIndex(entity.COSINE, 128)
		task, err := m.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, fieldEmbedding, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
		m.log.Infow("Milvus: collection created", "collection", name, "dim", m.cfg.Dim)
	}

	load, err := m.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := load.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	m.ready = true
	return nil
}

// partition returns whether the namespace partition exists, creating it when create is set.
func (m *MilvusIndex) partition(ctx context.Context, namespace string, create bool) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureCollection(ctx); err != nil {
		return "", false, err
	}
	name := PartitionName(namespace)
	if m.partitions[name] {
		return name, true, nil
	}

	ok, err := m.client.HasPartition(ctx, milvusclient.NewHasPartitionOption(m.cfg.Collection, name))
	if err != nil {
		return "", false, fmt.Errorf("failed to check partition: %w", err)
	}
	if !ok && create {
		if err := m.client.CreatePartition(ctx, milvusclient.NewCreatePartitionOption(m.cfg.Collection, name)); err != nil {
			return "", false, fmt.Errorf("failed to create partition %s: %w", name, err)
		}
		ok = true
	}
	if ok {
		m.partitions[name] = true
	}
	return name, ok, nil
}

func (m *MilvusIndex) Upsert(ctx context.Context, namespace string, entries []models.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	part, _, err := m.partition(ctx, namespace, true)
	if err != nil {
		return err
	}

	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	texts := make([]string, len(entries))
	sources := make([]string, len(entries))
	cities := make([]string, len(entries))
	for i, e := range entries {
		if len(e.Values) != m.cfg.Dim {
			return fmt.Errorf("%w: entry %s has dimension %d, index expects %d", core.ErrConfig, e.ID, len(e.Values), m.cfg.Dim)
		}
		ids[i] = e.ID
		vecs[i] = e.Values
		texts[i] = truncate(e.Metadata.Text, maxTextLen)
		sources[i] = truncate(e.Metadata.Source, maxMetaLen)
		cities[i] = truncate(e.Metadata.City, maxMetaLen)
	}

	opt := milvusclient.NewColumnBasedInsertOption(m.cfg.Collection,
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnFloatVector(fieldEmbedding, m.cfg.Dim, vecs),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldSource, sources),
		column.NewColumnVarChar(fieldCity, cities),
	).WithPartition(part)

	if _, err := m.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", part, err)
	}
	return nil
}

// Query searches one namespace partition. A namespace that was never
// ingested has no partition and yields no matches.
func (m *MilvusIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error) {
	if topK <= 0 || namespace == "" {
		return nil, nil
	}
	if len(vector) != m.cfg.Dim {
		return nil, fmt.Errorf("%w: query dimension %d, index expects %d", core.ErrConfig, len(vector), m.cfg.Dim)
	}
	part, ok, err := m.partition(ctx, namespace, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	results, err := m.client.Search(ctx, milvusclient.NewSearchOption(
		m.cfg.Collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithPartitions(part).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields(fieldText, fieldSource, fieldCity))
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", part, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	out := make([]models.Match, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		match := models.Match{Score: rs.Scores[i]}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			match.ID = idCol.Data()[i]
		}
		for _, field := range rs.Fields {
			col, ok := field.(*column.ColumnVarChar)
			if !ok {
				continue
			}
			switch col.Name() {
			case fieldText:
				match.Metadata.Text = col.Data()[i]
			case fieldSource:
				match.Metadata.Source = col.Data()[i]
			case fieldCity:
				match.Metadata.City = col.Data()[i]
			}
		}
		out = append(out, match)
	}
	return out, nil
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
