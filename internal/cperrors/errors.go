// Package cperrors defines the small set of stable error kinds that cross
// component boundaries: connectors, the LLM gateway, the draft generator,
// and email delivery all wrap their failures in one of these so callers can
// branch on Kind() instead of parsing messages.
package cperrors

import "fmt"

// Kind is a machine-stable token identifying a class of failure.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindSourceFetch    Kind = "source_fetch_error"
	KindRateLimit      Kind = "rate_limit_exceeded"
	KindLLMGeneration  Kind = "llm_generation_error"
	KindEmailSend      Kind = "email_send_error"
	KindNoContent      Kind = "no_content"
	KindNoTrends       Kind = "no_trends"
)

// Error is the common shape every cperrors constructor returns. It wraps an
// optional underlying error without losing errors.Is/As compatibility.
type Error struct {
	kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind reports the stable error-kind token for this failure.
func (e *Error) Kind() Kind { return e.kind }

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, Message: message, Err: cause}
}

// Validation marks bad input — a missing required credential/config field
// or an incomplete OAuth 1.0a quadruple. Never retried.
func Validation(message string) *Error { return newErr(KindValidation, message, nil) }

// SourceFetch marks a provider 4xx/5xx or parse failure. Contained to the
// one source that produced it; the rest of a crawl batch proceeds.
func SourceFetch(message string, cause error) *Error { return newErr(KindSourceFetch, message, cause) }

// RateLimit marks an LLM or source-provider rate-limit signal. Callers must
// return it immediately rather than sleeping.
func RateLimit(message string) *Error { return newErr(KindRateLimit, message, nil) }

// LLMGeneration marks a failed or unparseable model call.
func LLMGeneration(message string, cause error) *Error {
	return newErr(KindLLMGeneration, message, cause)
}

// EmailSend marks a per-recipient send failure. Logged and retried up to 3
// times; a terminal failure marks that recipient without stopping the run.
func EmailSend(message string, cause error) *Error { return newErr(KindEmailSend, message, cause) }

// NoContent marks an empty-input condition that is not itself an error —
// it results in a fallback draft rather than a propagated failure.
func NoContent(message string) *Error { return newErr(KindNoContent, message, nil) }

// NoTrends marks an empty trend-detection result under the same discipline
// as NoContent.
func NoTrends(message string) *Error { return newErr(KindNoTrends, message, nil) }

// Is lets errors.Is match two *Error values by Kind alone, so callers can
// write errors.Is(err, cperrors.RateLimit("")) without caring about message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind
}
