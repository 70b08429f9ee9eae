package tool

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/hal9000y/gmail-agent/internal/auth"
)

// Status tells why a tool produced its text.
type Status string

const (
	// StatusOK means the mailbox operation succeeded.
	StatusOK Status = "ok"
	// StatusDegraded means the mailbox refused the credential.
	StatusDegraded Status = "degraded"
	// StatusFailed means any other failure: transport, server, bad arguments.
	StatusFailed Status = "failed"
)

// Result is the outcome of a tool call. Text is always safe to hand to the
// model; Err keeps the cause for logs and tests.
type Result struct {
	Status Status
	Text   string
	Err    error
}

// OK returns a successful result.
func OK(text string) Result {
	return Result{Status: StatusOK, Text: text}
}

// FromError returns a degraded or failed result carrying the fixed text.
func FromError(text string, err error) Result {
	return Result{Status: classify(err), Text: text, Err: err}
}

func (r Result) String() string {
	return r.Text
}

func classify(err error) Status {
	if errors.Is(err, auth.ErrMissingCredential) {
		return StatusDegraded
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return StatusDegraded
		}
	}

	return StatusFailed
}
