package core

import (
	"context"
	"io"

	"github.com/markdave123-py/leaselens/internal/models"
)

// EmbeddingProvider converts text into fixed-dimension vectors.
type EmbeddingProvider interface {
	// EmbedOne embeds a single text. A zero-length vector for a non-empty
	// input is reported as ErrEmptyResult.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one request, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider wraps a generative model. Implementations must not retry.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorIndex is a namespaced vector database.
// Namespaces are independent; querying an unknown namespace yields no matches.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, entries []models.VectorEntry) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error)
}

// DocumentExtractor pulls plain text and page count out of a document buffer.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte) (*models.ExtractedDocument, error)
}

// DbClient defines all persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	GetOrCreateUser(ctx context.Context, seed *models.User) (*models.User, error)
	UpdateUserCity(ctx context.Context, userID, city string) (*models.User, error)

	// ConsumeCredit atomically decrements the balance if it is positive and
	// returns the new balance. ErrInsufficientCredits when nothing was left.
	ConsumeCredit(ctx context.Context, userID string) (int, error)
	// AddCredits atomically increments the balance. ErrNotFound for unknown users.
	AddCredits(ctx context.Context, userID string, delta int) (int, error)

	CreateScan(ctx context.Context, scan *models.Scan) error
	ListScansByUser(ctx context.Context, userID string) ([]models.ScanSummary, error)
	// GetScanForUser returns ErrNotFound when the scan does not exist or belongs to someone else.
	GetScanForUser(ctx context.Context, userID, scanID string) (*models.Scan, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}
