package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable marks index or embedding backend failures that
	// the caller may retry. Never swallowed into an empty result.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrEmptyIndex means zero passages are currently indexed.
	ErrEmptyIndex   = errors.New("index is empty")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
