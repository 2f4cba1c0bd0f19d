package analysis_engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

type memDB struct {
	mu    sync.Mutex
	users map[string]*models.User
	scans []*models.Scan
}

func newMemDB(users ...models.User) *memDB {
	db := &memDB{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		db.users[u.ID] = &u
	}
	return db
}

func (d *memDB) credits(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[id].Credits
}

func (d *memDB) GetOrCreateUser(_ context.Context, seed *models.User) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[seed.ID]; ok {
		cp := *u
		return &cp, nil
	}
	u := *seed
	d.users[u.ID] = &u
	cp := u
	return &cp, nil
}

func (d *memDB) UpdateUserCity(_ context.Context, id, city string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	u.City = city
	cp := *u
	return &cp, nil
}

func (d *memDB) ConsumeCredit(_ context.Context, id string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok || u.Credits <= 0 {
		return 0, core.ErrInsufficientCredits
	}
	u.Credits--
	return u.Credits, nil
}

func (d *memDB) AddCredits(_ context.Context, id string, delta int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return 0, core.ErrNotFound
	}
	u.Credits += delta
	return u.Credits, nil
}

func (d *memDB) CreateScan(_ context.Context, s *models.Scan) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scans = append(d.scans, s)
	return nil
}

func (d *memDB) ListScansByUser(context.Context, string) ([]models.ScanSummary, error) {
	return nil, nil
}

func (d *memDB) GetScanForUser(context.Context, string, string) (*models.Scan, error) {
	return nil, core.ErrNotFound
}

func (d *memDB) Close() error { return nil }

type stubExtractor struct {
	doc   *models.ExtractedDocument
	err   error
	gate  *sync.WaitGroup
	mu    sync.Mutex
	calls int
}

func (e *stubExtractor) Extract(context.Context, []byte) (*models.ExtractedDocument, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.gate != nil {
		e.gate.Done()
		e.gate.Wait()
	}
	return e.doc, e.err
}

type stubEmbedder struct {
	mu      sync.Mutex
	queries []string
}

func (e *stubEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, text)
	return []float32{0.1, 0.2}, nil
}

func (e *stubEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("not used")
}

type stubIndex struct {
	matches    []models.Match
	namespaces []string
	mu         sync.Mutex
}

func (x *stubIndex) Upsert(context.Context, string, []models.VectorEntry) error { return nil }

func (x *stubIndex) Query(_ context.Context, ns string, _ []float32, _ int) ([]models.Match, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.namespaces = append(x.namespaces, ns)
	return x.matches, nil
}

type stubLLM struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (l *stubLLM) Generate(_ context.Context, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	return l.out, l.err
}

func (l *stubLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

type recordingObjects struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (o *recordingObjects) UploadFile(_ context.Context, _, key string, data io.Reader, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = io.Copy(io.Discard, data)
	o.keys = append(o.keys, key)
	return "https://example/" + key, o.err
}

func (o *recordingObjects) GetFile(context.Context, string, string) ([]byte, error) { return nil, nil }

func (o *recordingObjects) ListKeys(context.Context, string, string) ([]string, error) {
	return nil, nil
}
