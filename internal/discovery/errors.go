package discovery

import (
	"errors"
	"fmt"
)

// Common errors returned by the discovery package
var (
	// ErrTransient is returned for temporary failures that might resolve on
	// retry: network errors, timeouts, rate limits, server-side errors.
	ErrTransient = errors.New("transient discovery failure")

	// ErrPermanent is returned for failures that will not resolve on retry:
	// authentication problems, rejected requests, malformed responses.
	// Any error not explicitly classified transient is treated as permanent.
	ErrPermanent = errors.New("permanent discovery failure")

	// ErrInvalidResponse is returned when the data source's response cannot
	// be parsed into hierarchy nodes. Wraps ErrPermanent.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response from data source", ErrPermanent)

	// ErrContentBlocked is returned when the data source refuses to answer
	// due to safety filtering. Wraps ErrPermanent.
	ErrContentBlocked = fmt.Errorf("%w: content blocked by data source safety filters", ErrPermanent)

	// ErrInvalidConfig is returned when a source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid discovery source configuration")
)

// IsTransient reports whether the error is explicitly classified as
// transient. Everything else, including unclassified errors, counts as
// permanent.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
