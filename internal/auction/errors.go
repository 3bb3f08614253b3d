package auction

import (
	"errors"
	"fmt"
)

// Rejections returned by auction operations. They describe a request that
// cannot be applied to the current state and are never retried.
var (
	ErrNotFound              = errors.New("auction not found")
	ErrClosed                = errors.New("auction is closed")
	ErrBelowMinimum          = errors.New("bid is below the minimum bid")
	ErrInsufficientIncrement = errors.New("bid does not raise the current bid by the interval")
	ErrCooldownActive        = errors.New("item is on auction cooldown")
	ErrConflict              = errors.New("change conflicts with the auction state")
	ErrUnauthorized          = errors.New("only the auction creator may do this")
	ErrInvalid               = errors.New("invalid auction parameters")
)

// ErrUnavailable wraps storage failures. The operation was aborted and
// nothing was committed; the caller may try again.
var ErrUnavailable = errors.New("auction storage unavailable")

var rejections = []struct {
	err    error
	reason string
}{
	{ErrNotFound, "not_found"},
	{ErrClosed, "closed"},
	{ErrBelowMinimum, "below_minimum"},
	{ErrInsufficientIncrement, "insufficient_increment"},
	{ErrCooldownActive, "cooldown_active"},
	{ErrConflict, "conflict"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalid, "invalid"},
}

// IsRejection reports whether err is a validation rejection as opposed to a
// storage failure.
func IsRejection(err error) bool {
	return rejectionReason(err) != ""
}

func rejectionReason(err error) string {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}

// unavailable marks err as a storage failure unless it is already a
// rejection or marked.
func unavailable(err error) error {
	if err == nil || IsRejection(err) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
