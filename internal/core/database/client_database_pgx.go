package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

var _ core.DbClient = (*DatabaseClient)(nil)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for user

const userColumns = `id, email, credits, city, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Credits, &u.City, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreateUser inserts seed if no account with its ID exists and returns
// the stored row. An existing account is never modified.
func (c *DatabaseClient) GetOrCreateUser(ctx context.Context, seed *models.User) (*models.User, error) {
	if seed == nil || seed.ID == "" {
		return nil, fmt.Errorf("%w: user id is required", core.ErrValidation)
	}
	const ins = `
		INSERT INTO users (id, email, credits, city)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, ins, seed.ID, seed.Email, seed.Credits, seed.City); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	u, err := scanUser(c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, seed.ID))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (c *DatabaseClient) UpdateUserCity(ctx context.Context, userID, city string) (*models.User, error) {
	const q = `
		UPDATE users SET city = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(c.db.QueryRowContext(ctx, q, userID, city))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("update city: %w", err)
	}
	return u, nil
}

// ConsumeCredit is a conditional decrement: of N concurrent callers racing for
// the last credit exactly one gets a row back.
func (c *DatabaseClient) ConsumeCredit(ctx context.Context, userID string) (int, error) {
	const q = `
		UPDATE users SET credits = credits - 1, updated_at = now()
		WHERE id = $1 AND credits > 0
		RETURNING credits
	`
	var left int
	err := c.db.QueryRowContext(ctx, q, userID).Scan(&left)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("consume credit: %w", err)
	}
	return left, nil
}

func (c *DatabaseClient) AddCredits(ctx context.Context, userID string, delta int) (int, error) {
	if delta <= 0 {
		return 0, fmt.Errorf("%w: credit delta must be positive, got %d", core.ErrValidation, delta)
	}
	const q = `
		UPDATE users SET credits = credits + $2, updated_at = now()
		WHERE id = $1
		RETURNING credits
	`
	var total int
	err := c.db.QueryRowContext(ctx, q, userID, delta).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: user %s", core.ErrNotFound, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return total, nil
}

// Implementing the db interface for scans

func (c *DatabaseClient) CreateScan(ctx context.Context, scan *models.Scan) error {
	if scan == nil {
		return errors.New("nil scan")
	}
	issues, err := json.Marshal(nonNilIssues(scan.Issues))
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}
	const q = `
		INSERT INTO scans (id, user_id, file_name, extracted_text, page_count, risk_score, issues)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		RETURNING created_at
	`
	return c.db.QueryRowContext(ctx, q,
		scan.ID, scan.UserID, scan.FileName, scan.ExtractedText, scan.PageCount, scan.RiskScore, string(issues),
	).Scan(&scan.CreatedAt)
}

func (c *DatabaseClient) ListScansByUser(ctx context.Context, userID string) ([]models.ScanSummary, error) {
	const q = `
		SELECT id, file_name, risk_score, page_count, issues, created_at
		FROM scans
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScanSummary{}
	for rows.Next() {
		var (
			s   models.ScanSummary
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.FileName, &s.RiskScore, &s.PageCount, &raw, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &s.Issues); err != nil {
			return nil, fmt.Errorf("decode issues of scan %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) GetScanForUser(ctx context.Context, userID, scanID string) (*models.Scan, error) {
	const q = `
		SELECT id, user_id, file_name, extracted_text, page_count, risk_score, issues, created_at
		FROM scans
		WHERE id::text = $1 AND user_id = $2
	`
	var (
		s   models.Scan
		raw []byte
	)
	err := c.db.QueryRowContext(ctx, q, scanID, userID).Scan(
		&s.ID, &s.UserID, &s.FileName, &s.ExtractedText, &s.PageCount, &s.RiskScore, &raw, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: scan %s", core.ErrNotFound, scanID)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.Issues); err != nil {
		return nil, fmt.Errorf("decode issues of scan %s: %w", s.ID, err)
	}
	return &s, nil
}

func nonNilIssues(in []models.Issue) []models.Issue {
	if in == nil {
		return []models.Issue{}
	}
	return in
}
