package client

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryNetwork     ErrorCategory = "network"
	ErrorCategoryRateLimited ErrorCategory = "rate_limited"
	ErrorCategoryUpstream5xx ErrorCategory = "upstream_5xx"
	ErrorCategoryBadRequest  ErrorCategory = "bad_request"
	ErrorCategoryCircuitOpen ErrorCategory = "circuit_open"
	ErrorCategoryParsing     ErrorCategory = "parsing"
	ErrorCategoryUnknown     ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrCircuitOpen) {
		return ErrorCategoryCircuitOpen
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorCategoryRateLimited
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return ErrorCategoryUpstream5xx
	}
	if errors.Is(err, ErrBadRequest) {
		return ErrorCategoryBadRequest
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCategoryTimeout
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "no such host") {
		return ErrorCategoryNetwork
	}
	if strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal") {
		return ErrorCategoryParsing
	}

	return ErrorCategoryUnknown
}

// UserMessage turns a fetch error into the message shown to the user.
// The data already on screen stays; this only explains why it was not refreshed.
func UserMessage(err error) string {
	switch CategorizeError(err) {
	case "":
		return ""
	case ErrorCategoryTimeout, ErrorCategoryNetwork:
		return "Could not reach the weather service. Check your connection and try again."
	case ErrorCategoryRateLimited:
		return "The weather service is busy. Try again in a few minutes."
	case ErrorCategoryCircuitOpen, ErrorCategoryUpstream5xx:
		return "The weather service is unavailable right now. Try again later."
	case ErrorCategoryBadRequest:
		return "The weather service rejected the request for this location."
	case ErrorCategoryParsing:
		return "The weather service returned data that could not be read."
	default:
		return "Failed to fetch weather data."
	}
}
