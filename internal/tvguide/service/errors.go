package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
)

// Caller-visible outcomes. The HTTP layer maps each to a distinct response.
var (
	ErrDuplicateUsername    = errors.New("duplicate_username")
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrMalformedInput       = errors.New("malformed_input")
	ErrDirectoryUnavailable = errors.New("directory_unavailable")
)

var (
	ErrChannelNotFound = errors.New("channel_not_found")
	ErrChannelExists   = errors.New("channel_exists")
	ErrProgramNotFound = errors.New("program_not_found")
)

var (
	ErrBootstrapDisabled     = errors.New("bootstrap_disabled")
	ErrBootstrapUnauthorized = errors.New("bootstrap_unauthorized")
	ErrBootstrapAlready      = errors.New("bootstrap_already_done")
)

// InputError describes which field failed validation. It matches
// ErrMalformedInput under errors.Is.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool { return target == ErrMalformedInput }

func malformed(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

// unavailable marks err as a directory fault while keeping the cause for logs.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
}

// inTx runs fn in one transaction. fn's own errors come back untouched;
// a failure to begin or commit is a directory fault.
func inTx(ctx context.Context, st store.Store, fn func(tx store.Tx) error) error {
	var fnErr error
	err := st.WithTx(ctx, func(tx store.Tx) error {
		fnErr = fn(tx)
		return fnErr
	})
	if err != nil && fnErr == nil {
		return unavailable(err)
	}
	return err
}
