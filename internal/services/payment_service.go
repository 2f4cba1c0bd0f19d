package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/markdave123-py/leaselens/internal/core"
)

// DefaultProductCredits maps store product ids to credit amounts.
var DefaultProductCredits = map[string]int{
	"fpnbfj": 1,
}

// PaymentService turns confirmed purchases into credits. Deliveries are not
// de-duplicated: a replayed purchase credits again.
type PaymentService struct {
	db              core.DbClient
	products        map[string]int
	fallbackCredits int
	log             *zap.SugaredLogger
}

func NewPaymentService(db core.DbClient, products map[string]int, fallbackCredits int, log *zap.SugaredLogger) *PaymentService {
	if products == nil {
		products = DefaultProductCredits
	}
	return &PaymentService{db: db, products: products, fallbackCredits: fallbackCredits, log: log}
}

// CreditsFor returns the table amount for productID and whether it is a known product.
func (s *PaymentService) CreditsFor(productID string) (int, bool) {
	n, ok := s.products[productID]
	return n, ok
}

// TopUp credits a purchase of productID; unknown products get the fallback amount.
func (s *PaymentService) TopUp(ctx context.Context, userID, productID string) (int, error) {
	n, ok := s.CreditsFor(productID)
	if !ok {
		n = s.fallbackCredits
	}
	return s.credit(ctx, userID, productID, n)
}

// TopUpKnown credits only products in the table.
func (s *PaymentService) TopUpKnown(ctx context.Context, userID, productID string) (int, bool, error) {
	n, ok := s.CreditsFor(productID)
	if !ok {
		return 0, false, nil
	}
	total, err := s.credit(ctx, userID, productID, n)
	return total, true, err
}

func (s *PaymentService) credit(ctx context.Context, userID, productID string, n int) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", core.ErrValidation)
	}
	total, err := s.db.AddCredits(ctx, userID, n)
	if err != nil {
		return 0, err
	}
	s.log.Infow("Payments: credits added", "user_id", userID, "product_id", productID, "added", n, "balance", total)
	return total, nil
}
