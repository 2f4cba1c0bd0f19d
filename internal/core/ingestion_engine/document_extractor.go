package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

const pdfContentType = "application/pdf"

var _ core.DocumentExtractor = (*PDFExtractor)(nil)

// PDFExtractor implements core.DocumentExtractor.
//
// Page count and structural validation always go through ledongthuc/pdf.
// Text goes through docconv when poppler's pdftotext is on PATH, which keeps
// reading order on multi-column layouts; otherwise the pure-Go reader is used.
type PDFExtractor struct {
	log *zap.SugaredLogger

	probe      sync.Once
	useDocconv bool
	lookPath   func(string) (string, error)
}

func NewPDFExtractor(log *zap.SugaredLogger) *PDFExtractor {
	return &PDFExtractor{log: log, lookPath: exec.LookPath}
}

// Degraded reports whether the extractor fell back to the pure-Go text path.
func (e *PDFExtractor) Degraded() bool {
	e.init()
	return !e.useDocconv
}

func (e *PDFExtractor) init() {
	e.probe.Do(func() {
		if _, err := e.lookPath("pdftotext"); err != nil {
			e.log.Warnw("PDFExtractor: pdftotext not found, using built-in text extraction", "error", err)
			return
		}
		e.useDocconv = true
	})
}

// Extract returns the plain text and page count of a PDF buffer.
// Unparseable, encrypted, empty or text-less documents yield core.ErrExtraction.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (doc *models.ExtractedDocument, err error) {
	e.init()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", core.ErrExtraction)
	}

	// ledongthuc/pdf panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: malformed pdf: %v", core.ErrExtraction, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExtraction, err)
	}
	pages := r.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("%w: document has no pages", core.ErrExtraction)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var text string
	if e.useDocconv {
		res, cerr := docconv.Convert(bytes.NewReader(data), pdfContentType, false)
		if cerr != nil {
			e.log.Warnw("PDFExtractor: docconv failed, falling back", "error", cerr)
		} else {
			text = res.Body
		}
	}
	if strings.TrimSpace(text) == "" {
		text = plainText(r, pages)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no extractable text", core.ErrExtraction)
	}
	return &models.ExtractedDocument{Text: text, PageCount: pages}, nil
}

func plainText(r *pdf.Reader, pages int) string {
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		t, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(t))
	}
	return b.String()
}
