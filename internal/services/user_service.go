package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/core/jurisdiction"
	"github.com/markdave123-py/leaselens/internal/models"
)

type UserService struct {
	db             core.DbClient
	starterCredits int
	defaultCity    string
}

func NewUserService(db core.DbClient, starterCredits int, defaultCity string) *UserService {
	return &UserService{db: db, starterCredits: starterCredits, defaultCity: defaultCity}
}

// Get returns the caller's account, creating it with the starter balance on
// first access. cityHint comes from the identity token and only seeds new
// accounts; unknown cities fall back to the default.
func (s *UserService) Get(ctx context.Context, userID, email, cityHint string) (*models.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", core.ErrValidation)
	}
	city := s.defaultCity
	if ns := jurisdiction.Namespace(cityHint); ns != "" && jurisdiction.IsKnown(ns) {
		city = ns
	}
	return s.db.GetOrCreateUser(ctx, &models.User{
		ID:      userID,
		Email:   email,
		Credits: s.starterCredits,
		City:    city,
	})
}

// UpdateCity stores a new jurisdiction preference. Only cities with an
// ingested corpus are accepted.
func (s *UserService) UpdateCity(ctx context.Context, userID, email, city string) (*models.User, error) {
	if strings.TrimSpace(city) == "" {
		return nil, fmt.Errorf("%w: City is required", core.ErrValidation)
	}
	if !jurisdiction.IsKnown(city) {
		return nil, fmt.Errorf("%w: unsupported city %q, expected one of %v", core.ErrValidation, city, jurisdiction.Known())
	}
	if _, err := s.Get(ctx, userID, email, ""); err != nil {
		return nil, err
	}
	return s.db.UpdateUserCity(ctx, userID, jurisdiction.Namespace(city))
}
