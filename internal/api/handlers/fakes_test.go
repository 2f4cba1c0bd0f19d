package handlers

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	middleware "github.com/markdave123-py/leaselens/internal/api/middlewares"
	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/core/analysis_engine"
	"github.com/markdave123-py/leaselens/internal/models"
)

var nop = zap.NewNop().Sugar()

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
	return &u, nil
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

func (d *memDB) ListScansByUser(_ context.Context, userID string) ([]models.ScanSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []models.ScanSummary{}
	for i := len(d.scans) - 1; i >= 0; i-- {
		s := d.scans[i]
		if s.UserID == userID {
			out = append(out, models.ScanSummary{ID: s.ID, FileName: s.FileName, RiskScore: s.RiskScore, PageCount: s.PageCount, Issues: s.Issues})
		}
	}
	return out, nil
}

func (d *memDB) GetScanForUser(_ context.Context, userID, scanID string) (*models.Scan, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.scans {
		if s.ID == scanID && s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (d *memDB) Close() error { return nil }

// scriptedAnalyzer replays a fixed event list and records the request it saw.
type scriptedAnalyzer struct {
	events []analysis_engine.Event
	got    analysis_engine.Request
	ctxErr error
}

func (a *scriptedAnalyzer) Run(ctx context.Context, req analysis_engine.Request) <-chan analysis_engine.Event {
	a.got = req
	a.ctxErr = ctx.Err()
	ch := make(chan analysis_engine.Event, len(a.events))
	for _, e := range a.events {
		ch <- e
	}
	close(ch)
	return ch
}

func withIdentity(r *http.Request, id middleware.Identity) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), id))
}
