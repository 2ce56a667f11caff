// pkg/squidex/errors.go
package squidex

import (
	"fmt"
	"strings"
)

// AuthenticationError means the identity server rejected the client
// credentials or could not be reached.
type AuthenticationError struct {
	App     string
	Status  int
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("squidex auth failed for app %q: status %d: %s", e.App, e.Status, e.Message)
	}
	return fmt.Sprintf("squidex auth failed for app %q: %s", e.App, e.Message)
}

// TransportError wraps timeouts, DNS failures and connection errors on
// any outbound call, as opposed to an HTTP-level rejection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("squidex %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// RemoteCallError is a non-2xx response from the content API.
type RemoteCallError struct {
	Status int
	Body   string
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("squidex returned status %d: %s", e.Status, e.Body)
}

// NotFoundError is the 404 specialization of RemoteCallError.
type NotFoundError struct {
	Schema string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("schema %q not found", e.Schema)
	}
	return fmt.Sprintf("content %q not found in schema %q", e.ID, e.Schema)
}

// ConflictError is an optimistic-concurrency precondition failure
// (If-Match version mismatch).
type ConflictError struct {
	Schema string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict updating %q in schema %q", e.ID, e.Schema)
}

// UnknownTenantError means the requested app has no configured
// credentials. Available lists every configured app for diagnostics.
type UnknownTenantError struct {
	App       string
	Available []string
}

func (e *UnknownTenantError) Error() string {
	return fmt.Sprintf("unknown app %q (available: %s)", e.App, strings.Join(e.Available, ", "))
}
