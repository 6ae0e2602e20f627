// Package apperr defines the error kinds returned by the analysis endpoint and
// renders them as JSON responses.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

type Kind string

const (
	KindConfiguration         Kind = "ConfigurationError"
	KindUnauthenticated       Kind = "Unauthenticated"
	KindTenantNotConfigured   Kind = "TenantNotConfigured"
	KindEntitlementRequired   Kind = "EntitlementRequired"
	KindRateLimitExceeded     Kind = "RateLimitExceeded"
	KindInvalidRequest        Kind = "InvalidRequest"
	KindInsufficientData      Kind = "InsufficientData"
	KindAIProviderUnavailable Kind = "AIProviderUnavailable"
	KindAIResponseMalformed   Kind = "AIResponseMalformed"
	KindDataIntegrity         Kind = "DataIntegrityError"
	KindInternal              Kind = "InternalError"
)

var statusByKind = map[Kind]int{
	KindConfiguration:         http.StatusInternalServerError,
	KindUnauthenticated:       http.StatusUnauthorized,
	KindTenantNotConfigured:   http.StatusNotFound,
	KindEntitlementRequired:   http.StatusForbidden,
	KindRateLimitExceeded:     http.StatusTooManyRequests,
	KindInvalidRequest:        http.StatusBadRequest,
	KindInsufficientData:      http.StatusUnprocessableEntity,
	KindAIProviderUnavailable: http.StatusBadGateway,
	KindAIResponseMalformed:   http.StatusInternalServerError,
	KindDataIntegrity:         http.StatusInternalServerError,
	KindInternal:              http.StatusInternalServerError,
}

// Error is a terminal failure of one request.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return string(e.Kind) + ": " + e.Message + " (" + e.Details + ")"
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	e := &Error{Kind: kind, Message: message, Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func Configuration(details string) *Error {
	return &Error{Kind: KindConfiguration, Message: "Server configuration error", Details: details}
}

func Unauthenticated(message string, err error) *Error {
	return Wrap(KindUnauthenticated, message, err)
}

func TenantNotConfigured() *Error {
	return New(KindTenantNotConfigured, "Business not found for this account")
}

func EntitlementRequired() *Error {
	return New(KindEntitlementRequired, "The AI assistant requires the Pro plan. Upgrade to unlock AI analysis.")
}

func RateLimitExceeded(limit int) *Error {
	return &Error{
		Kind:    KindRateLimitExceeded,
		Message: "Daily AI limit reached. The limit resets at midnight UTC.",
		Details: "limit " + strconv.Itoa(limit) + " requests per day",
	}
}

func InvalidRequest(message string) *Error {
	return New(KindInvalidRequest, message)
}

func InsufficientData() *Error {
	return New(KindInsufficientData, "Not enough feedback: no customer comments in the last 30 days")
}

func AIProviderUnavailable(quotaExhausted bool, err error) *Error {
	if quotaExhausted {
		return Wrap(KindAIProviderUnavailable, "AI provider quota exhausted, check billing", err)
	}
	return Wrap(KindAIProviderUnavailable, "AI service unavailable", err)
}

func AIResponseMalformed(err error) *Error {
	return Wrap(KindAIResponseMalformed, "Failed to parse AI response", err)
}

func DataIntegrity(message string) *Error {
	return New(KindDataIntegrity, message)
}

// As extracts an *Error from err, converting anything else to an internal error.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

type response struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Write renders err as `{error, details?}` with the status of its kind.
func Write(w http.ResponseWriter, err error) {
	e := As(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	json.NewEncoder(w).Encode(response{Error: e.Message, Details: e.Details})
}
