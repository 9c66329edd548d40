package invoice

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when no invoice matches the lookup.
	ErrNotFound = fmt.Errorf("invoice: %w", httpx.ErrNotFound)
	// ErrNumberExhausted is returned when no free invoice number could be drawn.
	ErrNumberExhausted = errors.New("invoice: no free invoice number")
	// ErrMissingNumber guards the store against keyless upserts.
	ErrMissingNumber = fmt.Errorf("invoice: invoice number required: %w", httpx.ErrValidation)
)

// ValidationError reports the fields that blocked a save.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "invoice: " + strings.Join(parts, "; ")
}

// Unwrap maps to the shared validation sentinel.
func (e *ValidationError) Unwrap() error { return httpx.ErrValidation }

// FieldErrors exposes per-field messages to the HTTP layer.
func (e *ValidationError) FieldErrors() map[string]string { return e.Fields }
