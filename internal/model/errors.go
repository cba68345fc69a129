package model

import "errors"

// Error taxonomy shared by the assembler, indicator engine and detector.
// Callers match with errors.Is; concrete errors wrap one of these.
var (
	// ErrResolution is returned when a (symbol, exchange) pair has no
	// instrument in the reference data. Fatal for that symbol only.
	ErrResolution = errors.New("instrument not found")

	// ErrTransport wraps network/HTTP failures from the candle source.
	ErrTransport = errors.New("candle source transport failure")

	// ErrInvalidParameter marks caller errors: bad granularity, source
	// field, average kind or period set. Never retried.
	ErrInvalidParameter = errors.New("invalid parameter")
)
