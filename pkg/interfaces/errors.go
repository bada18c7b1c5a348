package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrStatsDisabled = errors.New("statistics store is disabled")
)
