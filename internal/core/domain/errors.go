package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTenant = errors.New("missing tenant id")
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("item not found or processing")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTemporary     = errors.New("temporary failure")
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
