package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidAddress  Code = "INVALID_ADDRESS"
	CodeInvalidSymbol   Code = "INVALID_SYMBOL"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Somnia chain / RPC error codes
const (
	CodeSomniaConnectionFailed Code = "SOMNIA_CONNECTION_FAILED"
	CodeSomniaRPCError         Code = "SOMNIA_RPC_ERROR"
	CodeContractCallFailed     Code = "CONTRACT_CALL_FAILED"
)

// Pricing error codes
const (
	CodeExchangeAPIError    Code = "EXCHANGE_API_ERROR"
	CodeExchangeUnsupported Code = "EXCHANGE_UNSUPPORTED"
	CodeOracleReadFailed    Code = "ORACLE_READ_FAILED"
	CodeAllSourcesFailed    Code = "ALL_SOURCES_FAILED"
	CodeHistoryFetchFailed  Code = "HISTORY_FETCH_FAILED"
)

// DEX manager error codes
const (
	CodePoolNotFound       Code = "POOL_NOT_FOUND"
	CodePositionNotFound   Code = "POSITION_NOT_FOUND"
	CodeModeUnavailable    Code = "MODE_UNAVAILABLE"
	CodeBackendUnavailable Code = "BACKEND_UNAVAILABLE"
)

// Engagement error codes
const (
	CodeSignatureInvalid Code = "SIGNATURE_INVALID"
	CodeListingNotFound  Code = "LISTING_NOT_FOUND"
)

// Infrastructure error codes
const (
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeCircuitOpen              Code = "CIRCUIT_OPEN"
	CodeStorageError             Code = "STORAGE_ERROR"
)
