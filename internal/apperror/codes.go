package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"

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

// Domain error codes
const (
	// Chain/RPC errors
	CodeChainConnectionFailed Code = "CHAIN_CONNECTION_FAILED"
	CodeChainSubscribeFailed  Code = "CHAIN_SUBSCRIBE_FAILED"
	CodeChainRPCError         Code = "CHAIN_RPC_ERROR"
	CodeGasEstimationFailed   Code = "GAS_ESTIMATION_FAILED"
	CodeNonceSyncFailed       Code = "NONCE_SYNC_FAILED"

	// Price oracle errors
	CodeNoPrice             Code = "NO_PRICE"
	CodePriceSourceFailed   Code = "PRICE_SOURCE_FAILED"
	CodePriceStale          Code = "PRICE_STALE"
	CodePairUnsupported     Code = "PAIR_UNSUPPORTED"
	CodeReferenceDivergence Code = "REFERENCE_DIVERGENCE"

	// Quote aggregation errors
	CodeQuoteFailed        Code = "QUOTE_FAILED"
	CodeMulticallFailed    Code = "MULTICALL_FAILED"
	CodeNoRoute            Code = "NO_ROUTE"
	CodeContractCallFailed Code = "CONTRACT_CALL_FAILED"

	// Opportunity detection errors
	CodeProfitBelowThreshold Code = "PROFIT_BELOW_THRESHOLD"
	CodeROISuspicious        Code = "ROI_SUSPICIOUS"
	CodeInvalidTradeSize     Code = "INVALID_TRADE_SIZE"

	// Custody errors
	CodePairingFailed           Code = "PAIRING_FAILED"
	CodeInvalidSignature        Code = "INVALID_SIGNATURE"
	CodeInsufficientAllowance   Code = "INSUFFICIENT_ALLOWANCE"
	CodeInsufficientFunds       Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientGas         Code = "INSUFFICIENT_GAS"
	CodeOwnerNotPaired          Code = "OWNER_NOT_PAIRED"
	CodeKeyStoreUnavailable     Code = "KEY_STORE_UNAVAILABLE"
	CodeConsolidationIncomplete Code = "CONSOLIDATION_INCOMPLETE"

	// Execution errors
	CodeApprovalFailed     Code = "APPROVAL_FAILED"
	CodeExecutionReverted  Code = "EXECUTION_REVERTED"
	CodeSlippageExceeded   Code = "SLIPPAGE_EXCEEDED"
	CodeTxTimeout          Code = "TX_TIMEOUT"
	CodeTxUnderpriced      Code = "TX_UNDERPRICED"
	CodeDeadlineExpired    Code = "DEADLINE_EXPIRED"
	CodeTokenMetadataError Code = "TOKEN_METADATA_ERROR"

	// Engine errors
	CodeEngineAlreadyRunning Code = "ENGINE_ALREADY_RUNNING"
	CodeEngineNotRunning     Code = "ENGINE_NOT_RUNNING"
	CodeDrawdownLimit        Code = "DRAWDOWN_LIMIT"
	CodeWatchdogStall        Code = "WATCHDOG_STALL"

	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
