// errors/config_errors.go
package errors

import "errors"

var (
	ErrConfigInvalid       = errors.New("invalid gatekeeper configuration")
	ErrGateCycle           = errors.New("gate dependency graph contains a cycle")
	ErrUnknownGate         = errors.New("dependency on an unregistered gate")
	ErrDuplicateGate       = errors.New("duplicate gate name")
	ErrUnknownEnvironment  = errors.New("unknown target environment")
	ErrExceptionNotFound   = errors.New("exception not found")
	ErrInvalidExceptionData = errors.New("invalid exception data")
)
