package services

import (
	"context"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

type ScanService struct {
	db core.DbClient
}

func NewScanService(db core.DbClient) *ScanService {
	return &ScanService{db: db}
}

// List returns the caller's scans, newest first.
func (s *ScanService) List(ctx context.Context, userID string) ([]models.ScanSummary, error) {
	return s.db.ListScansByUser(ctx, userID)
}

// Get returns one scan owned by the caller, or core.ErrNotFound.
func (s *ScanService) Get(ctx context.Context, userID, scanID string) (*models.Scan, error) {
	return s.db.GetScanForUser(ctx, userID, scanID)
}
