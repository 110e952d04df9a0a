package connectors

import "fmt"

// BrokerErrorCodes maps broker API error codes to human-readable names.
var BrokerErrorCodes = map[int]string{
	40010000: "MALFORMED_REQUEST",         // Request body or query is invalid
	40010001: "INVALID_CLIENT_ORDER_ID",   // client_order_id already used or malformed
	40110000: "UNAUTHORIZED",              // Missing or invalid API credentials
	40310000: "INSUFFICIENT_BUYING_POWER", // Not enough buying power for the order
	40410000: "NOT_FOUND",                 // Order, position or asset not found
	42210000: "UNPROCESSABLE",             // Asset not active / tradable / fractionable, market closed
	42910000: "RATE_LIMITED",              // Too many requests
	50010000: "INTERNAL_ERROR",            // Broker side failure
}

// GetErrorMsg returns a human-readable message for a given broker error code.
// If the code is unknown, returns a generic message including the code.
func GetErrorMsg(code int) string {
	if msg, ok := BrokerErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_BROKER_ERROR_%d", code)
}
