package expectation

import (
	"fmt"
	"strings"

	"github.com/roach88/conteo/internal/engine"
	"github.com/roach88/conteo/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrInvalidKind      = "E201" // kind is not remito or general
	ErrEmptyCode        = "E202" // item code blank after normalization
	ErrDuplicateCode    = "E203" // two items share a normalized code
	ErrNegativeExpected = "E204" // expected quantity below zero
	ErrInvalidID        = "E205" // id contains surrounding or inner whitespace
	ErrExpectedTooLarge = "E206" // expected quantity above ir.MaxQuantity
)

// ValidationError is one rule violation in an expectation set.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks an expectation set against the rules the engine enforces
// at creation time. Returns all errors found (does not fail-fast).
func Validate(nc engine.NewCount) []ValidationError {
	var errs []ValidationError

	// E205: IDs are used as CLI arguments and lock keys
	if nc.ID != "" && strings.ContainsFunc(nc.ID, isSpace) {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("id %q must not contain whitespace", nc.ID),
			Code:    ErrInvalidID,
		})
	}

	// E201
	if nc.Kind != "" && !ir.ValidCountKinds[nc.Kind] {
		errs = append(errs, ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown count kind %q", nc.Kind),
			Code:    ErrInvalidKind,
		})
	}

	seen := make(map[string]int, len(nc.Items))
	for i, it := range nc.Items {
		field := fmt.Sprintf("items[%d]", i)
		code := ir.NormalizeCode(it.Code)

		// E202
		if code == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".code",
				Message: "code is required and must be non-empty",
				Code:    ErrEmptyCode,
			})
		} else if first, dup := seen[code]; dup {
			// E203
			errs = append(errs, ValidationError{
				Field:   field + ".code",
				Message: fmt.Sprintf("duplicate code %q (first at items[%d])", code, first),
				Code:    ErrDuplicateCode,
			})
		} else {
			seen[code] = i
		}

		// E204
		if it.Expected < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".expected",
				Message: fmt.Sprintf("expected must be >= 0, got %d", it.Expected),
				Code:    ErrNegativeExpected,
			})
		}

		// E206
		if it.Expected > ir.MaxQuantity {
			errs = append(errs, ValidationError{
				Field:   field + ".expected",
				Message: fmt.Sprintf("expected must be <= %d, got %d", ir.MaxQuantity, it.Expected),
				Code:    ErrExpectedTooLarge,
			})
		}
	}

	return errs
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
