package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidAddress:  "Invalid blockchain address",
	CodeInvalidSymbol:   "Invalid token symbol",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Somnia chain / RPC errors
	CodeSomniaConnectionFailed: "Failed to connect to Somnia RPC node",
	CodeSomniaRPCError:         "Somnia RPC call failed",
	CodeContractCallFailed:     "Smart contract call failed",

	// Pricing errors
	CodeExchangeAPIError:    "Exchange API error",
	CodeExchangeUnsupported: "Exchange is not supported",
	CodeOracleReadFailed:    "Oracle price read failed",
	CodeAllSourcesFailed:    "All price sources failed",
	CodeHistoryFetchFailed:  "Failed to fetch price history",

	// DEX manager errors
	CodePoolNotFound:       "Liquidity pool not found",
	CodePositionNotFound:   "Position not found",
	CodeModeUnavailable:    "Requested DEX mode is unavailable",
	CodeBackendUnavailable: "Active DEX backend is unreachable",

	// Engagement errors
	CodeSignatureInvalid: "Signature does not match the claimed address",
	CodeListingNotFound:  "Listing not found",

	// Infrastructure errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeCircuitOpen:              "Circuit breaker is open",
	CodeStorageError:             "Storage operation failed",
}
