package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/markdave123-py/leaselens/internal/api/middlewares"
	"github.com/markdave123-py/leaselens/internal/core/analysis_engine"
	"github.com/markdave123-py/leaselens/internal/models"
	"github.com/markdave123-py/leaselens/internal/services"
)

var alice = middleware.Identity{UserID: "u1", Email: "alice@example.com", City: "london"}

func happyEvents() []analysis_engine.Event {
	return []analysis_engine.Event{
		analysis_engine.StatusEvent{Step: 0, Message: "Initiating analysis..."},
		analysis_engine.StatusEvent{Step: 1, Message: "Checking credits..."},
		analysis_engine.ResultEvent{Data: analysis_engine.Result{ScanID: "s1", RiskScore: 40, Issues: []models.Issue{}}},
	}
}

func newScanRouter(a Analyzer, db *memDB) http.Handler {
	h := NewScanHandler(a, services.NewScanService(db), time.Minute, nop)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, withIdentity(r, alice))
		})
	})
	r.Post("/api/scans/scan", h.Scan)
	r.Get("/api/scans", h.List)
	r.Get("/api/scans/{id}", h.Get)
	return r
}

func TestScanStreamsServerSentEvents(t *testing.T) {
	a := &scriptedAnalyzer{events: happyEvents()}
	srv := newScanRouter(a, newMemDB())

	body := `{"fileBase64":"JVBERi0=","fileName":"lease.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/api/scans/scan", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	var frames []map[string]any
	for _, block := range strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n") {
		require.True(t, strings.HasPrefix(block, "data: "), block)
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &m))
		frames = append(frames, m)
	}
	require.Len(t, frames, 3)
	assert.Equal(t, "status", frames[0]["type"])
	assert.Equal(t, float64(0), frames[0]["step"])
	assert.Equal(t, "result", frames[2]["type"])

	assert.Equal(t, "u1", a.got.UserID)
	assert.Equal(t, "london", a.got.City)
	assert.Equal(t, "lease.pdf", a.got.FileName)
	assert.Equal(t, "JVBERi0=", a.got.FileBase64)
}

func TestScanStreamsNDJSONWhenAsked(t *testing.T) {
	a := &scriptedAnalyzer{events: []analysis_engine.Event{
		analysis_engine.StatusEvent{Step: 0, Message: "Initiating analysis..."},
		analysis_engine.ErrorEvent{Message: "Insufficient credits. Please top up."},
	}}
	srv := newScanRouter(a, newMemDB())

	req := httptest.NewRequest(http.MethodPost, "/api/scans/scan", strings.NewReader(`{"fileBase64":"x"}`))
	req.Header.Set("Accept", "application/x-ndjson")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var types []string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		types = append(types, m["type"].(string))
	}
	assert.Equal(t, []string{"status", "error"}, types)
}

func TestScanRunsOnDetachedContext(t *testing.T) {
	a := &scriptedAnalyzer{events: happyEvents()}
	srv := newScanRouter(a, newMemDB())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/scans/scan", strings.NewReader(`{"fileBase64":"x"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.NoError(t, a.ctxErr, "a cancelled request must not cancel the analysis")
}

func TestScanReportsBadBodyInStream(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed json", body: `{not json`, want: msgInvalidBody},
		{name: "too large", body: `{"fileBase64":"` + strings.Repeat("A", maxScanBody) + `"}`, want: msgBodyTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &scriptedAnalyzer{events: happyEvents()}
			srv := newScanRouter(a, newMemDB())

			req := httptest.NewRequest(http.MethodPost, "/api/scans/scan", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

			frame := strings.TrimSpace(rec.Body.String())
			require.True(t, strings.HasPrefix(frame, "data: "), frame)
			assert.NotContains(t, frame, "\n\n", "exactly one record")
			var m map[string]any
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &m))
			assert.Equal(t, "error", m["type"])
			assert.Equal(t, tt.want, m["message"])
			assert.Empty(t, a.got.UserID, "analysis must not start")
		})
	}
}

// failingWriter drops every write after the headers.
type failingWriter struct {
	header http.Header
	writes int
}

func (f *failingWriter) Header() http.Header { return f.header }
func (f *failingWriter) WriteHeader(int)     {}
func (f *failingWriter) Write([]byte) (int, error) {
	f.writes++
	return 0, assert.AnError
}

func TestScanDrainsAfterWriteFailure(t *testing.T) {
	ch := make(chan analysis_engine.Event)
	produced := make(chan struct{})
	a := analyzerFunc(func(context.Context, analysis_engine.Request) <-chan analysis_engine.Event {
		go func() {
			defer close(produced)
			defer close(ch)
			for _, e := range happyEvents() {
				ch <- e
			}
		}()
		return ch
	})

	h := NewScanHandler(a, services.NewScanService(newMemDB()), time.Minute, nop)
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/scans/scan", strings.NewReader(`{"fileBase64":"x"}`)), alice)
	w := &failingWriter{header: http.Header{}}
	h.Scan(w, req)

	select {
	case <-produced:
	case <-time.After(time.Second):
		t.Fatal("producer blocked after the client went away")
	}
	assert.Equal(t, 1, w.writes)
}

type analyzerFunc func(context.Context, analysis_engine.Request) <-chan analysis_engine.Event

func (f analyzerFunc) Run(ctx context.Context, req analysis_engine.Request) <-chan analysis_engine.Event {
	return f(ctx, req)
}

func TestListAndGetScans(t *testing.T) {
	db := newMemDB()
	db.scans = []*models.Scan{
		{ID: "s1", UserID: "u1", FileName: "a.pdf", RiskScore: 10, Issues: []models.Issue{}},
		{ID: "s2", UserID: "u2", FileName: "b.pdf", RiskScore: 90, Issues: []models.Issue{}},
		{ID: "s3", UserID: "u1", FileName: "c.pdf", RiskScore: 50, Issues: []models.Issue{}},
	}
	srv := newScanRouter(&scriptedAnalyzer{}, db)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Scans []models.ScanSummary `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Scans, 2)
	assert.Equal(t, "s3", list.Scans[0].ID)
	assert.Equal(t, "s1", list.Scans[1].ID)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var one struct {
		Scan models.Scan `json:"scan"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "a.pdf", one.Scan.FileName)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/s2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Scan not found"}`, rec.Body.String())
}

func TestScanRequiresIdentity(t *testing.T) {
	h := NewScanHandler(&scriptedAnalyzer{}, services.NewScanService(newMemDB()), time.Minute, nop)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/scans", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
