package region

import "github.com/rotisserie/eris"

// Sentinel errors for the resolution taxonomy. Callers classify with
// eris.Is and map to their transport's status codes.
var (
	// ErrInvalidQuery marks malformed or contradictory region input.
	// Never retried.
	ErrInvalidQuery = eris.New("region: invalid region query")

	// ErrNotFound marks a named region absent from the gazetteer.
	ErrNotFound = eris.New("region: region not found")
)

// InvalidQueryf wraps ErrInvalidQuery with detail.
func InvalidQueryf(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidQuery, format, args...)
}

// NotFoundf wraps ErrNotFound with detail.
func NotFoundf(format string, args ...any) error {
	return eris.Wrapf(ErrNotFound, format, args...)
}
