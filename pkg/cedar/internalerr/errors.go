package internalerr

import "github.com/cockroachdb/errors"

// Sentinel errors surfaced by the engine. Call sites wrap these with context;
// match them with errors.Is.
var (
	ErrUnknownSort    = errors.New("unknown sort")
	ErrDuplicateID    = errors.New("duplicate instance id")
	ErrInvalidDegree  = errors.New("invalid degree")
	ErrSelfSimilarity = errors.New("self similarity rejected")

	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidDegree reports whether d lies in [0, 1]. NaN is never valid.
func ValidDegree(d float64) bool {
	return d >= 0 && d <= 1
}
