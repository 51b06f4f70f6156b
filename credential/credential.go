// credential/credential.go
package credential

import (
	"time"
)

// Credential is a short-lived, scope-limited authorization for exactly one
// mutating operation. It is owned by the call stack that obtained it: never
// written to durable storage, never cached, and never logged. The external
// trust provider enforces the TTL.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Scope is the environment the credential was granted for.
	Scope     string
	ExpiresAt time.Time
}

// String redacts the secret material; a Credential formatted into a log
// line or error message exposes only its scope and expiry.
func (c Credential) String() string {
	return "credential[scope=" + c.Scope + " expires=" + c.ExpiresAt.UTC().Format(time.RFC3339) + " REDACTED]"
}

// GoString keeps %#v output redacted too.
func (c Credential) GoString() string {
	return c.String()
}

// MarshalJSON refuses to serialize secret material.
func (c Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}
