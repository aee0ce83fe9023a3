package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrVenueUnavailable      = errors.New("venue unavailable")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrTimeout               = errors.New("timeout waiting for venue")
	ErrInvalidTierTable      = errors.New("invalid tier table")
	ErrInvalidTarget         = errors.New("target quantity must be positive")
	ErrUnauthorized          = errors.New("unauthorized")
)

// IsVenueFailure reports whether err is one of the failures a caller should
// treat as "no quote for this venue this tick".
func IsVenueFailure(err error) bool {
	return errors.Is(err, ErrVenueUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrInsufficientLiquidity)
}
