// SPDX-License-Identifier: MIT

package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a row does not exist and the operation
	// requires it to.
	ErrNotFound = errors.New("ledger: not found")

	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("ledger: conflict")

	// ErrInvalidTransition is returned for a job status change that is not
	// part of the allowed state machine.
	ErrInvalidTransition = errors.New("ledger: invalid status transition")
)

// mapConstraintErr converts engine-level constraint violations to ErrConflict
// so callers can branch on the taxonomy instead of driver internals.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
