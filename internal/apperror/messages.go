package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",
	CodeUnauthorized:    "Unauthorized",

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

	// Chain/RPC errors
	CodeChainConnectionFailed: "Failed to connect to chain node",
	CodeChainSubscribeFailed:  "Failed to subscribe to chain events",
	CodeChainRPCError:         "Chain RPC call failed",
	CodeGasEstimationFailed:   "Gas estimation failed",
	CodeNonceSyncFailed:       "Failed to sync account nonce",

	// Price oracle errors
	CodeNoPrice:             "No price available from any source",
	CodePriceSourceFailed:   "Price source request failed",
	CodePriceStale:          "Price data is stale",
	CodePairUnsupported:     "Trading pair not supported by source",
	CodeReferenceDivergence: "Venue price diverges from reference",

	// Quote aggregation errors
	CodeQuoteFailed:        "Failed to obtain venue quote",
	CodeMulticallFailed:    "Multicall batch failed",
	CodeNoRoute:            "No viable route across venues",
	CodeContractCallFailed: "Smart contract call failed",

	// Opportunity detection errors
	CodeProfitBelowThreshold: "Net profit below threshold",
	CodeROISuspicious:        "Return on investment exceeds plausibility limit",
	CodeInvalidTradeSize:     "Invalid trade size",

	// Custody errors
	CodePairingFailed:           "Owner pairing failed",
	CodeInvalidSignature:        "Signature verification failed",
	CodeInsufficientAllowance:   "Token allowance too low",
	CodeInsufficientFunds:       "Insufficient token balance",
	CodeInsufficientGas:         "Insufficient native balance for gas",
	CodeOwnerNotPaired:          "No owner wallet paired",
	CodeKeyStoreUnavailable:     "Operator key store unavailable",
	CodeConsolidationIncomplete: "Consolidation sweep incomplete",

	// Execution errors
	CodeApprovalFailed:     "Token approval failed",
	CodeExecutionReverted:  "Swap transaction reverted",
	CodeSlippageExceeded:   "Output below minimum acceptable amount",
	CodeTxTimeout:          "Transaction not mined before timeout",
	CodeTxUnderpriced:      "Transaction underpriced",
	CodeDeadlineExpired:    "Swap deadline expired",
	CodeTokenMetadataError: "Failed to read token metadata",

	// Engine errors
	CodeEngineAlreadyRunning: "Engine is already running",
	CodeEngineNotRunning:     "Engine is not running",
	CodeDrawdownLimit:        "Session drawdown limit reached",
	CodeWatchdogStall:        "Scan loop stalled beyond watchdog limit",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
