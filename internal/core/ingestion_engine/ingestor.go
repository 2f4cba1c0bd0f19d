package ingestion_engine

import "context"

// Ingestor loads a jurisdiction's legal corpus into the vector index.
type Ingestor interface {
	Run(ctx context.Context, city string, src Source) (Report, error)
}

// Report summarises one ingestion run.
type Report struct {
	Namespace string
	Documents int
	Skipped   int
	Chunks    int
	Batches   int
}
