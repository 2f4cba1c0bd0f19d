package services

import (
	"context"
	"sync"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

// memDB implements core.DbClient over maps. Only the account methods are used here.
type memDB struct {
	core.DbClient

	mu    sync.Mutex
	users map[string]*models.User
}

func newMemDB(users ...models.User) *memDB {
	db := &memDB{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		db.users[u.ID] = &u
	}
	return db
}

func (d *memDB) user(id string) (models.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return models.User{}, false
	}
	return *u, true
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
