package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/leaselens/internal/app"
	"github.com/markdave123-py/leaselens/internal/config"
	"github.com/markdave123-py/leaselens/internal/core/ingestion_engine"
	"github.com/markdave123-py/leaselens/internal/logging"
)

type ingestOptions struct {
	city      string
	source    string
	chunkSize int
	overlap   int
	ingest    ingestion_engine.IngestConfig
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := ingestOptions{
		ingest: ingestion_engine.IngestConfig{
			BatchSize:         cfg.IngestBatchSize,
			BatchDelay:        cfg.IngestBatchDelay,
			RateLimitCooldown: cfg.IngestRateLimitCooldown,
			EmbedDim:          cfg.EmbedDim,
		},
	}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed a jurisdiction's legal corpus into the vector index",
		Long: `Reads every PDF under --source, splits it into overlapping chunks,
embeds them in throttled batches and upserts them into the namespace of --city.
Re-running over the same corpus overwrites entries in place.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.city, "city", cfg.DefaultCity, "jurisdiction whose namespace receives the corpus")
	f.StringVar(&opts.source, "source", "", "directory of PDFs or s3://bucket/prefix")
	f.IntVar(&opts.ingest.BatchSize, "batch-size", opts.ingest.BatchSize, "chunks per embedding request (1-50)")
	f.DurationVar(&opts.ingest.BatchDelay, "delay", opts.ingest.BatchDelay, "minimum spacing between embedding requests")
	f.DurationVar(&opts.ingest.RateLimitCooldown, "cooldown", opts.ingest.RateLimitCooldown, "wait before retrying a rate-limited batch")
	f.IntVar(&opts.chunkSize, "chunk-size", ingestion_engine.DefaultChunkSize, "chunk length in characters")
	f.IntVar(&opts.overlap, "overlap", ingestion_engine.DefaultChunkOverlap, "characters shared by consecutive chunks")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runIngest(cmd *cobra.Command, cfg *config.Config, opts ingestOptions) error {
	if opts.city == "" {
		return errors.New("--city is required")
	}
	opts.ingest.ChunkSize = opts.chunkSize
	opts.ingest.Overlap = opts.overlap
	if err := opts.ingest.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	providers, err := app.NewProviders(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = providers.Close(ctx) }()

	src, err := ingestion_engine.ParseSource(opts.source, providers.Objects)
	if err != nil {
		return err
	}

	pipeline, err := ingestion_engine.NewPipeline(providers.Extractor, providers.Embedder, providers.Index, opts.ingest, log)
	if err != nil {
		return err
	}

	rep, err := pipeline.Run(ctx, opts.city, src)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", opts.city, err)
	}

	cmd.Printf("Ingested %d documents (%d skipped) into namespace %q: %d chunks in %d batches\n",
		rep.Documents, rep.Skipped, rep.Namespace, rep.Chunks, rep.Batches)
	return nil
}
