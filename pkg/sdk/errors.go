package memoir

import "github.com/kailas-cloud/memoir/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound      = domain.ErrNotFound
	ErrInvalidRecord = domain.ErrInvalidRecord
	ErrInvalidPrompt = domain.ErrInvalidPrompt
	ErrIO            = domain.ErrIO
	ErrParse         = domain.ErrParse
	ErrTransport     = domain.ErrTransport
)
