package ingestion_engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/markdave123-py/leaselens/internal/core"
)

// Source enumerates and reads the PDFs of one ingestion run.
// List returns references in a stable order; Read loads one of them.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, ref string) ([]byte, error)
}

// DirectorySource reads every *.pdf directly inside Dir.
type DirectorySource struct {
	Dir string
}

func (s DirectorySource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}
	var refs []string
	for _, e := range entries {
		if e.IsDir() || !isPDF(e.Name()) {
			continue
		}
		refs = append(refs, e.Name())
	}
	return refs, nil
}

func (s DirectorySource) Read(ctx context.Context, ref string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Dir, ref))
}

// S3Source reads every *.pdf object under Prefix in Bucket.
type S3Source struct {
	Client core.ObjectClient
	Bucket string
	Prefix string
}

func (s S3Source) List(ctx context.Context) ([]string, error) {
	keys, err := s.Client.ListKeys(ctx, s.Bucket, s.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", s.Bucket, s.Prefix, err)
	}
	var refs []string
	for _, k := range keys {
		if isPDF(k) {
			refs = append(refs, k)
		}
	}
	sort.Strings(refs)
	return refs, nil
}

func (s S3Source) Read(ctx context.Context, ref string) ([]byte, error) {
	return s.Client.GetFile(ctx, s.Bucket, ref)
}

// ParseSource turns a --source flag into a Source. "s3://bucket/prefix"
// selects object storage and needs obj; anything else is a local directory.
func ParseSource(raw string, obj core.ObjectClient) (Source, error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		if raw == "" {
			return nil, fmt.Errorf("%w: source is required", core.ErrConfig)
		}
		return DirectorySource{Dir: raw}, nil
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: s3 source requires object storage credentials", core.ErrConfig)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 source %q has no bucket", core.ErrConfig, raw)
	}
	return S3Source{Client: obj, Bucket: bucket, Prefix: prefix}, nil
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
