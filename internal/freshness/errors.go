package freshness

import "errors"

var (
	// ErrFetchTimeout is returned when a fetch exceeds its category timeout
	ErrFetchTimeout = errors.New("fetch timed out")
	// ErrEmptyResult is returned when a fetch succeeds without observations
	ErrEmptyResult = errors.New("fetch returned no observations")
)
