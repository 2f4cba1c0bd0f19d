package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/leaselens/internal/core"
)

// classify maps a Gemini client error onto core.ErrRateLimited or core.ErrProvider.
// Context cancellation is passed through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrRateLimited) || errors.Is(err, core.ErrProvider) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isRateLimited(err) {
		return fmt.Errorf("%w: %s: %v", core.ErrRateLimited, op, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrProvider, op, err)
}

func isRateLimited(err error) bool {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPCode() == http.StatusTooManyRequests {
			return true
		}
		if s := apiErr.GRPCStatus(); s != nil && s.Code() == codes.ResourceExhausted {
			return true
		}
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "resource exhausted")
}
