package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/markdave123-py/leaselens/internal/core/analysis_engine"
)

const ndjsonContentType = "application/x-ndjson"

// streamWriter frames analysis events as server-sent events, or as
// newline-delimited JSON when the client asked for it. Safe for concurrent use.
type streamWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	ndjson bool
}

func newStreamWriter(w http.ResponseWriter, r *http.Request) *streamWriter {
	ndjson := strings.Contains(r.Header.Get("Accept"), ndjsonContentType)

	h := w.Header()
	if ndjson {
		h.Set("Content-Type", ndjsonContentType)
	} else {
		h.Set("Content-Type", "text/event-stream")
		h.Set("Connection", "keep-alive")
	}
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &streamWriter{w: w, rc: http.NewResponseController(w), ndjson: ndjson}
}

func (s *streamWriter) Event(e analysis_engine.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if s.ndjson {
		return s.write(string(b) + "\n")
	}
	return s.write("data: " + string(b) + "\n\n")
}

// Comment sends an SSE comment line to keep intermediaries from timing out.
func (s *streamWriter) Comment(text string) error {
	if s.ndjson {
		return nil
	}
	return s.write(": " + text + "\n\n")
}

func (s *streamWriter) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write([]byte(frame)); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
