package booking

import (
	"errors"
	"fmt"

	"gymbook/internal/conflict"
)

var (
	// ErrNotFound is returned when a request id does not exist.
	ErrNotFound = errors.New("booking not found")
	// ErrAlreadyDecided signals a second decision on the same request.
	ErrAlreadyDecided = errors.New("booking already decided")
	// ErrSlotTaken is returned by stores when the coach slot uniqueness
	// constraint rejects an insert.
	ErrSlotTaken = errors.New("coach slot already taken")
)

// ValidationError reports a bad input field. No write has occurred.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConflictError reports an overlap with an existing booking.
type ConflictError struct {
	Kind    conflict.Kind
	Booking conflict.Existing
}

func (e *ConflictError) Error() string {
	switch e.Kind {
	case conflict.KindMemberDoubleBooked:
		return fmt.Sprintf("member already has booking %d at %s", e.Booking.ID, e.Booking.TimeSlot)
	case conflict.KindCoachNowBusy:
		return fmt.Sprintf("coach %s was booked at %s since the request was made", e.Booking.Coach, e.Booking.TimeSlot)
	default:
		return fmt.Sprintf("coach %s is busy at %s", e.Booking.Coach, e.Booking.TimeSlot)
	}
}

// StorageError wraps persistence failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// ConflictKind returns the conflict kind carried by err, if any.
func ConflictKind(err error) (conflict.Kind, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c.Kind, true
	}
	return "", false
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyDecided) ||
		IsValidation(err) || IsConflict(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
