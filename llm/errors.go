// ABOUTME: Error hierarchy for provider calls made by the summarize pipeline.
// ABOUTME: Defines structured provider, network, streaming and configuration errors plus classification helpers.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// SDKError is the base error type for all errors in this package.
// All other error types embed SDKError either directly or transitively.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns false for the base SDKError. Subtypes override this.
func (e *SDKError) IsRetryable() bool {
	return false
}

// ProviderError represents an error returned by a provider's API.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	ErrorCode  string
	Retryable  bool
	RetryAfter *float64
	Raw        json.RawMessage
}

func (e *ProviderError) Error() string     { return e.SDKError.Error() }
func (e *ProviderError) Unwrap() error     { return e.SDKError.Unwrap() }
func (e *ProviderError) IsRetryable() bool { return e.Retryable }

// As enables errors.As to match SDKError from a ProviderError.
func (e *ProviderError) As(target any) bool {
	if t, ok := target.(**SDKError); ok {
		*t = &e.SDKError
		return true
	}
	return false
}

// providerSubtype is shared by the status-code specific error types so each
// one only has to declare its retryability.
type providerSubtype struct {
	ProviderError
}

func (e *providerSubtype) Error() string { return e.ProviderError.Error() }
func (e *providerSubtype) Unwrap() error { return e.ProviderError.Unwrap() }

func (e *providerSubtype) As(target any) bool {
	switch t := target.(type) {
	case **ProviderError:
		*t = &e.ProviderError
		return true
	case **SDKError:
		*t = &e.SDKError
		return true
	default:
		return false
	}
}

// AuthenticationError represents a 401 Unauthorized response. Not retryable.
type AuthenticationError struct{ providerSubtype }

func (e *AuthenticationError) IsRetryable() bool { return false }

// AccessDeniedError represents a 403 Forbidden response. Not retryable.
type AccessDeniedError struct{ providerSubtype }

func (e *AccessDeniedError) IsRetryable() bool { return false }

// NotFoundError represents a 404 Not Found response. Not retryable.
type NotFoundError struct{ providerSubtype }

func (e *NotFoundError) IsRetryable() bool { return false }

// InvalidRequestError represents a 400 or 422 response. Not retryable.
type InvalidRequestError struct{ providerSubtype }

func (e *InvalidRequestError) IsRetryable() bool { return false }

// ContextLengthError represents a 413 payload/context too large response. Not retryable.
type ContextLengthError struct{ providerSubtype }

func (e *ContextLengthError) IsRetryable() bool { return false }

// RateLimitError represents a 429 Too Many Requests response. Retryable.
type RateLimitError struct{ providerSubtype }

func (e *RateLimitError) IsRetryable() bool { return true }

// ServerError represents a 5xx server error response. Retryable.
type ServerError struct{ providerSubtype }

func (e *ServerError) IsRetryable() bool { return true }

// NoAllowedProvidersError is a gateway rejection meaning the routing policy
// left no sub-provider able to serve the model. Callers compose a distinct
// remediation message for it, so it must not be folded into a generic error.
type NoAllowedProvidersError struct{ providerSubtype }

func (e *NoAllowedProvidersError) IsRetryable() bool { return false }

// RequestTimeoutError represents a request timeout (408 or client-side). Retryable.
type RequestTimeoutError struct {
	SDKError
}

func (e *RequestTimeoutError) IsRetryable() bool { return true }

// AbortError represents an intentionally aborted operation. Not retryable.
type AbortError struct {
	SDKError
}

func (e *AbortError) IsRetryable() bool { return false }

// NetworkError represents a network-level failure (DNS, connection refused, etc.). Retryable.
type NetworkError struct {
	SDKError
}

func (e *NetworkError) IsRetryable() bool { return true }

// StreamError represents an error during response streaming. Retryable.
type StreamError struct {
	SDKError
}

func (e *StreamError) IsRetryable() bool { return true }

// StreamingUnsupportedError means the provider refused to stream this request
// shape. The same request may still succeed without streaming.
type StreamingUnsupportedError struct {
	SDKError
}

func (e *StreamingUnsupportedError) IsRetryable() bool { return false }

// ConfigurationError represents a configuration problem (missing API key, etc.). Not retryable.
type ConfigurationError struct {
	SDKError
}

func (e *ConfigurationError) IsRetryable() bool { return false }

// noAllowedProvidersMarkers are the phrases gateways use when the routing
// policy filtered out every sub-provider.
var noAllowedProvidersMarkers = []string{
	"no allowed providers",
	"no endpoints found matching your data policy",
}

// streamingUnsupportedMarkers are the phrases providers use when a request
// shape cannot be streamed.
var streamingUnsupportedMarkers = []string{
	"streaming is not supported",
	"streaming not supported",
	"stream is not supported",
	"does not support streaming",
	"unsupported value: 'stream'",
}

func containsAny(msg string, markers []string) bool {
	lower := strings.ToLower(msg)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
// For unknown status codes, it returns a ProviderError with Retryable=true as a
// conservative default (unknown errors are assumed transient).
func ErrorFromStatusCode(statusCode int, message, provider, errorCode string, raw json.RawMessage, retryAfter *float64) error {
	base := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Raw:        raw,
		RetryAfter: retryAfter,
	}

	if containsAny(message, noAllowedProvidersMarkers) {
		return &NoAllowedProvidersError{providerSubtype{base}}
	}
	if statusCode == 400 && containsAny(message, streamingUnsupportedMarkers) {
		return &StreamingUnsupportedError{SDKError: SDKError{Message: message}}
	}

	switch {
	case statusCode == 400, statusCode == 422:
		return &InvalidRequestError{providerSubtype{base}}
	case statusCode == 401:
		return &AuthenticationError{providerSubtype{base}}
	case statusCode == 403:
		return &AccessDeniedError{providerSubtype{base}}
	case statusCode == 404:
		return &NotFoundError{providerSubtype{base}}
	case statusCode == 408:
		return &RequestTimeoutError{SDKError: SDKError{Message: message}}
	case statusCode == 413:
		return &ContextLengthError{providerSubtype{base}}
	case statusCode == 429:
		base.Retryable = true
		return &RateLimitError{providerSubtype{base}}
	case statusCode >= 500 && statusCode <= 599:
		base.Retryable = true
		return &ServerError{providerSubtype{base}}
	default:
		base.Retryable = true
		return &base
	}
}

// IsStreamingUnsupported reports whether err says the request shape cannot
// be streamed. SDK errors that were never classified are matched by message.
func IsStreamingUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var su *StreamingUnsupportedError
	if errors.As(err, &su) {
		return true
	}
	return containsAny(err.Error(), streamingUnsupportedMarkers)
}

// IsNoAllowedProviders reports whether err is a gateway routing-policy rejection.
func IsNoAllowedProviders(err error) bool {
	if err == nil {
		return false
	}
	var na *NoAllowedProvidersError
	if errors.As(err, &na) {
		return true
	}
	return containsAny(err.Error(), noAllowedProvidersMarkers)
}

// IsRateLimit detects 429 rate limit errors, including ones surfaced by the
// underlying provider SDKs only through their error messages.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit")
}

// IsAbort reports whether err was caused by the caller giving up on the call.
func IsAbort(err error) bool {
	if err == nil {
		return false
	}
	var ab *AbortError
	return errors.As(err, &ab) || errors.Is(err, context.Canceled)
}

// parseRetryAfter reads a Retry-After header given in seconds. HTTP-date
// values are ignored and leave the computed backoff in place.
func parseRetryAfter(header string) *float64 {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(header, 64)
	if err != nil || secs < 0 {
		return nil
	}
	return &secs
}
