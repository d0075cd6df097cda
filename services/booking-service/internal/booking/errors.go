package booking

import (
	"errors"
	"fmt"
)

var (
	ErrBusinessNotFound    = errors.New("business not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrRuleNotFound        = errors.New("rule not found")
	ErrSlotTaken           = errors.New("time slot already booked")
	ErrOutsideAvailability = errors.New("requested time is outside business availability")
	ErrNotCancellable      = errors.New("booking cannot be cancelled")
	ErrInvalidRequest      = errors.New("invalid request")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// orNotFound swaps the store's ErrNotFound for a domain specific error.
func orNotFound(err, replacement error) error {
	if errors.Is(err, ErrNotFound) {
		return replacement
	}
	return err
}
