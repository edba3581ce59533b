package availability

import (
	"errors"
	"fmt"
	"strings"

	availabilityRepo "creatorhub/database/repository/availability"
	"creatorhub/models"
	"creatorhub/services/calendarsync"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrRuleNotFound          = errors.New("availability rule not found")
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("not allowed to manage this calendar")
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
	ErrOutsideWorkingHours   = errors.New("outside working hours")
	ErrInsufficientNotice    = errors.New("insufficient notice")
	ErrClaimContended        = errors.New("another claim for this creator is in progress")
	ErrProviderUnavailable   = calendarsync.ErrProviderUnavailable
	ErrVersionConflict       = availabilityRepo.ErrVersionConflict
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in an input. It matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func newValidationError(field, format string, args ...any) error {
	v := &ValidationError{}
	v.add(field, format, args...)
	return v
}

// SlotUnavailableError rejects a claim and carries the reasons. Depending on
// the conflicts it matches ErrSlotNoLongerAvailable, ErrProviderUnavailable,
// ErrOutsideWorkingHours or ErrInsufficientNotice.
type SlotUnavailableError struct {
	Conflicts []models.ConflictDescriptor
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("%v (%d conflicts)", e.reason(), len(e.Conflicts))
}

func (e *SlotUnavailableError) Is(target error) bool { return target == e.reason() }

// reason picks the most specific error: a real collision first, then a
// provider that could not be checked, then rule violations.
func (e *SlotUnavailableError) reason() error {
	has := map[models.ConflictKind]bool{}
	for _, c := range e.Conflicts {
		has[c.Kind] = true
	}
	switch {
	case has[models.ConflictBooking], has[models.ConflictHold], has[models.ConflictManualBlock], has[models.ConflictExternal]:
		return ErrSlotNoLongerAvailable
	case has[models.ConflictProviderCheckFailed]:
		return ErrProviderUnavailable
	case has[models.ConflictOutsideWorkingHours], has[models.ConflictBlackout]:
		return ErrOutsideWorkingHours
	case has[models.ConflictInsufficientNotice]:
		return ErrInsufficientNotice
	default:
		return ErrSlotNoLongerAvailable
	}
}
