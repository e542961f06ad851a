package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/docstore"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewForbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{"wrapped domain error", fmt.Errorf("outer: %w", NewValidationError("bad", nil)), "VALIDATION_FAILED", http.StatusBadRequest},
		{"store not found", fmt.Errorf("get issue: %w", docstore.ErrNotFound), "NOT_FOUND", http.StatusNotFound},
		{"fiber error", fiber.NewError(http.StatusNotFound, "Cannot GET /nope"), "NOT_FOUND", http.StatusNotFound},
		{"anything else", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.HTTPStatus != tt.wantStatus {
				t.Errorf("status = %d, want %d", got.HTTPStatus, tt.wantStatus)
			}
		})
	}
	if ToDomainError(nil) != nil {
		t.Error("nil error should map to nil")
	}
}
