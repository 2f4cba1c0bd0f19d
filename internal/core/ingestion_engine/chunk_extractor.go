package ingestion_engine

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

// Default chunking parameters, in characters of normalized text.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ValidateChunking fails fast on parameters that would never advance.
func ValidateChunking(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrConfig, chunkSize)
	}
	if overlap <= 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: overlap must satisfy 0 < overlap < chunk size, got overlap=%d size=%d",
			core.ErrConfig, overlap, chunkSize)
	}
	return nil
}

// NormalizeWhitespace collapses every whitespace run into a single space and trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Chunks returns a lazy, restartable sequence of overlapping segments of the
// whitespace-normalized text. Sizes and offsets count characters (runes):
// chunk i starts at i*(chunkSize-overlap) and the last chunk holds whatever remains.
func Chunks(text string, chunkSize, overlap int) (iter.Seq[string], error) {
	if err := ValidateChunking(chunkSize, overlap); err != nil {
		return nil, err
	}
	runes := []rune(NormalizeWhitespace(text))
	step := chunkSize - overlap

	return func(yield func(string) bool) {
		n := len(runes)
		for start := 0; start < n; start += step {
			end := min(start+chunkSize, n)
			if !yield(string(runes[start:end])) {
				return
			}
		}
	}, nil
}

// ChunkText is the eager form of Chunks.
func ChunkText(text string, chunkSize, overlap int) ([]string, error) {
	seq, err := Chunks(text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	var out []string
	for c := range seq {
		out = append(out, c)
	}
	return out, nil
}

// ChunkDocument chunks the text of one source document and assigns stable ids.
func ChunkDocument(documentName, text string, chunkSize, overlap int) ([]models.Chunk, error) {
	seq, err := Chunks(text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	base := SanitizeDocumentName(documentName)

	var chunks []models.Chunk
	idx := 0
	for c := range seq {
		chunks = append(chunks, models.Chunk{
			ID:             ChunkID(base, idx),
			Text:           c,
			SourceDocument: documentName,
			SequenceIndex:  idx,
		})
		idx++
	}
	return chunks, nil
}

// SanitizeDocumentName drops a .pdf extension and replaces every
// non-alphanumeric character with an underscore.
func SanitizeDocumentName(name string) string {
	name = strings.Replace(name, ".pdf", "", 1)
	return nonAlnum.ReplaceAllString(name, "_")
}

// ChunkID is the vector entry id for chunk idx of a sanitized document name.
func ChunkID(sanitizedName string, idx int) string {
	return fmt.Sprintf("%s-chunk-%d", sanitizedName, idx)
}
