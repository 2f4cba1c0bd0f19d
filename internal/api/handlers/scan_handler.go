package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	middleware "github.com/markdave123-py/leaselens/internal/api/middlewares"
	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/core/analysis_engine"
	"github.com/markdave123-py/leaselens/internal/services"
)

// maxScanBody bounds the JSON body of a scan request (base64 inflates ~4/3).
const maxScanBody = 50 << 20

const (
	msgInvalidBody  = "Invalid request body"
	msgBodyTooLarge = "File is too large"
)

// Analyzer starts an analysis and returns its event stream.
type Analyzer interface {
	Run(ctx context.Context, req analysis_engine.Request) <-chan analysis_engine.Event
}

type ScanHandler struct {
	analyzer  Analyzer
	scans     *services.ScanService
	timeout   time.Duration
	heartbeat time.Duration
	log       *zap.SugaredLogger
}

func NewScanHandler(analyzer Analyzer, scans *services.ScanService, timeout time.Duration, log *zap.SugaredLogger) *ScanHandler {
	return &ScanHandler{analyzer: analyzer, scans: scans, timeout: timeout, heartbeat: 15 * time.Second, log: log}
}

type ScanRequest struct {
	FileBase64 string `json:"fileBase64"`
	FileName   string `json:"fileName"`
}

// Scan runs one analysis and streams its progress.
//
// The analysis runs on a context detached from the request: a client that
// disconnects does not cancel paid provider calls midway. The writer keeps
// draining the event channel after a failed write so the run always completes.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// Body errors are reported in-stream so every scan response has the same shape.
	var body ScanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScanBody)).Decode(&body); err != nil {
		msg := msgInvalidBody
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = msgBodyTooLarge
		}
		h.log.Infow("Scan: rejected request body", "user_id", id.UserID, "error", err)
		_ = newStreamWriter(w, r).Event(analysis_engine.ErrorEvent{Message: msg})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	events := h.analyzer.Run(ctx, analysis_engine.Request{
		UserID:     id.UserID,
		Email:      id.Email,
		City:       id.City,
		FileName:   body.FileName,
		FileBase64: body.FileBase64,
	})

	sw := newStreamWriter(w, r)
	done := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		var writeErr error
		for e := range events {
			if writeErr != nil {
				continue
			}
			writeErr = sw.Event(e)
		}
		return writeErr
	})
	g.Go(func() error {
		t := time.NewTicker(h.heartbeat)
		defer t.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-t.C:
				if err := sw.Comment("ping"); err != nil {
					return nil
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		h.log.Warnw("Scan: client stream broken, analysis ran to completion", "user_id", id.UserID, "error", err)
	}
}

func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	scans, err := h.scans.List(r.Context(), id.UserID)
	if err != nil {
		h.log.Errorw("Scans: list failed", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch scans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	scan, err := h.scans.Get(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Scan not found")
		return
	}
	if err != nil {
		h.log.Errorw("Scans: get failed", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch scan details")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scan": scan})
}
