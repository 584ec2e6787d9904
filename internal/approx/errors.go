package approx

import "errors"

var (
	// ErrConfig indicates an invalid request: unknown index variant or
	// estimator, max order outside [1, n], budget below 1.
	ErrConfig = errors.New("invalid approximation request")

	// ErrBudget indicates a budget too small to cover the minimum design
	// (all singletons plus the empty and full coalitions), or too small
	// for the selected estimator's smallest unit of work.
	ErrBudget = errors.New("insufficient budget")
)
