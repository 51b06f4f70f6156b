// errors/pipeline_errors.go
package errors

import "errors"

var (
	ErrDecisionBlocked     = errors.New("decision blocked the change")
	ErrNotAllowed          = errors.New("apply requested without an allow decision")
	ErrCredentialIntegrity = errors.New("credential scope exceeds the requested scope")
	ErrLockContention      = errors.New("state lock held by another run")
	ErrApplyFailed         = errors.New("apply operation failed")
	ErrRunCancelled        = errors.New("pipeline run cancelled")
	ErrInternalServer      = errors.New("internal server error")
)
