// Package claimerr is the error taxonomy shared by the proof pipeline, the
// submission relay and the identity handshake broker.
package claimerr

import (
	"encoding/json"
	"errors"
	"fmt"

	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

type Category string

const (
	CategoryInput      Category = "input"
	CategoryEngine     Category = "engine"
	CategoryRemote     Category = "remote"
	CategorySubmission Category = "submission"
	CategoryHandshake  Category = "handshake"
	CategoryUnknown    Category = "unknown"
)

var categories = map[reasoncodes.ReasonCode]Category{
	reasoncodes.ErrInvalidArtifact:       CategoryInput,
	reasoncodes.ErrEmptyCommand:          CategoryInput,
	reasoncodes.ErrMissingEndpoint:       CategoryInput,
	reasoncodes.ErrEngineFailure:         CategoryEngine,
	reasoncodes.ErrRemoteProving:         CategoryRemote,
	reasoncodes.ErrInvalidRemoteResponse: CategoryRemote,
	reasoncodes.ErrNoProof:               CategorySubmission,
	reasoncodes.ErrSubmissionFailed:      CategorySubmission,
	reasoncodes.ErrSubmissionTimeout:     CategorySubmission,
	reasoncodes.ErrPopupBlocked:          CategoryHandshake,
	reasoncodes.ErrUserCancelled:         CategoryHandshake,
	reasoncodes.ErrProviderError:         CategoryHandshake,
	reasoncodes.ErrHandshakeAborted:      CategoryHandshake,
}

var defaultMessages = map[reasoncodes.ReasonCode]string{
	reasoncodes.ErrInvalidArtifact:       "Please upload a valid .eml file",
	reasoncodes.ErrEmptyCommand:          "Please provide a command",
	reasoncodes.ErrMissingEndpoint:       "Remote proving endpoint is not configured",
	reasoncodes.ErrEngineFailure:         "Proof engine failed",
	reasoncodes.ErrRemoteProving:         "Remote proving failed",
	reasoncodes.ErrInvalidRemoteResponse: "Remote prover returned an invalid proof",
	reasoncodes.ErrNoProof:               "No proof available to submit",
	reasoncodes.ErrSubmissionFailed:      "Submission failed",
	reasoncodes.ErrSubmissionTimeout:     "Timed out waiting for the transaction receipt",
	reasoncodes.ErrPopupBlocked:          "Popup blocked. Please allow popups for this site.",
	reasoncodes.ErrUserCancelled:         "Authentication cancelled",
	reasoncodes.ErrProviderError:         "Authentication failed",
	reasoncodes.ErrHandshakeAborted:      "Authentication aborted",
}

// Error carries a machine-readable code plus the context a caller needs to
// render it: the pipeline step it happened at and, for remote failures, the
// HTTP status and body the prover answered with.
type Error struct {
	Code    reasoncodes.ReasonCode `json:"code"`
	Message string                 `json:"message,omitempty"`
	Step    string                 `json:"step,omitempty"`
	Status  int                    `json:"status,omitempty"`
	Body    string                 `json:"body,omitempty"`
	Err     error                  `json:"-"`
}

func New(code reasoncodes.ReasonCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code reasoncodes.ReasonCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code reasoncodes.ReasonCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Remote builds the error for a non-success answer from the remote prover.
func Remote(status int, body string) *Error {
	return &Error{
		Code:    reasoncodes.ErrRemoteProving,
		Message: fmt.Sprintf("Server error: %d - %s", status, body),
		Status:  status,
		Body:    body,
	}
}

// AtStep returns a copy of e attributed to step.
func (e *Error) AtStep(step string) *Error {
	cp := *e
	cp.Step = step
	return &cp
}

// Reason is the message without the step suffix.
func (e *Error) Reason() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil && e.Code == reasoncodes.ErrSubmissionFailed:
		return "Submission failed: " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		if msg, ok := defaultMessages[e.Code]; ok {
			return msg
		}
		return string(e.Code)
	}
}

// MarshalJSON always emits the rendered reason as message, so wrapped causes
// survive the trip to clients and queues.
func (e *Error) MarshalJSON() ([]byte, error) {
	type wire Error
	w := wire(*e)
	w.Message = e.Reason()
	return json.Marshal(w)
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s (at %s)", e.Reason(), e.Step)
	}
	return e.Reason()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so the exported sentinels
// work with errors.Is regardless of message or step.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) Category() Category { return CategoryOf(e.Code) }

func CategoryOf(code reasoncodes.ReasonCode) Category {
	if c, ok := categories[code]; ok {
		return c
	}
	return CategoryUnknown
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in the chain or ErrInternal.
func CodeOf(err error) reasoncodes.ReasonCode {
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return reasoncodes.ErrInternal
}

var (
	ErrInvalidArtifact       = &Error{Code: reasoncodes.ErrInvalidArtifact}
	ErrEmptyCommand          = &Error{Code: reasoncodes.ErrEmptyCommand}
	ErrMissingEndpoint       = &Error{Code: reasoncodes.ErrMissingEndpoint}
	ErrEngineFailure         = &Error{Code: reasoncodes.ErrEngineFailure}
	ErrRemoteProving         = &Error{Code: reasoncodes.ErrRemoteProving}
	ErrInvalidRemoteResponse = &Error{Code: reasoncodes.ErrInvalidRemoteResponse}
	ErrNoProof               = &Error{Code: reasoncodes.ErrNoProof}
	ErrSubmissionFailed      = &Error{Code: reasoncodes.ErrSubmissionFailed}
	ErrSubmissionTimeout     = &Error{Code: reasoncodes.ErrSubmissionTimeout}
	ErrPopupBlocked          = &Error{Code: reasoncodes.ErrPopupBlocked}
	ErrUserCancelled         = &Error{Code: reasoncodes.ErrUserCancelled}
	ErrProviderError         = &Error{Code: reasoncodes.ErrProviderError}
	ErrHandshakeAborted      = &Error{Code: reasoncodes.ErrHandshakeAborted}
)
