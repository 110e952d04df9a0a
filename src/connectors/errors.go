package connectors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind says how the engine should treat a rejected order.
type ErrorKind string

const (
	ErrorKindAssetNotActive          ErrorKind = "asset_not_active"
	ErrorKindInsufficientBuyingPower ErrorKind = "insufficient_buying_power"
	ErrorKindDuplicateClientOrderID  ErrorKind = "duplicate_client_order_id"
	ErrorKindOther                   ErrorKind = "other"
)

const (
	codeInvalidClientOrderID    = 40010001
	codeInsufficientBuyingPower = 40310000
	codeUnprocessable           = 42210000
)

// BrokerError is a domain rejection returned by the broker API.
type BrokerError struct {
	Kind       ErrorKind
	Code       int
	Message    string
	StatusCode int
	// Attempt is the request attempt that got this answer, 1 for the first try.
	Attempt int
}

func (e *BrokerError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("broker error %d (%s): %s", e.Code, GetErrorMsg(e.Code), e.Message)
	}
	return fmt.Sprintf("broker error HTTP %d: %s", e.StatusCode, e.Message)
}

var (
	assetNotActivePatterns = []string{
		"not active",
		"not tradable",
		"not tradeable",
		"not fractionable",
		"asset is inactive",
	}
	buyingPowerPatterns = []string{
		"insufficient buying power",
		"insufficient funds",
	}
	duplicateClientIDPatterns = []string{
		"client_order_id must be unique",
		"duplicate client_order_id",
	}
)

// NewBrokerError builds a classified BrokerError from an API error body.
func NewBrokerError(statusCode, code int, message string) *BrokerError {
	return &BrokerError{
		Kind:       classify(statusCode, code, message),
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func classify(statusCode, code int, message string) ErrorKind {
	msg := strings.ToLower(message)

	if code == codeInsufficientBuyingPower || containsAny(msg, buyingPowerPatterns) {
		return ErrorKindInsufficientBuyingPower
	}
	if containsAny(msg, assetNotActivePatterns) {
		return ErrorKindAssetNotActive
	}
	if code == codeInvalidClientOrderID || (statusCode == http.StatusConflict) || containsAny(msg, duplicateClientIDPatterns) {
		return ErrorKindDuplicateClientOrderID
	}
	if code == codeUnprocessable && strings.Contains(msg, "asset") {
		return ErrorKindAssetNotActive
	}
	return ErrorKindOther
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// KindOf returns the ErrorKind of err, or ErrorKindOther when err is not a
// BrokerError.
func KindOf(err error) ErrorKind {
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ErrorKindOther
}
