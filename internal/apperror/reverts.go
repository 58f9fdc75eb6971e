package apperror

import "strings"

// revertPatterns maps substrings of node / router revert messages to codes.
// Router errors surface as free-text revert reasons, so matching is by
// lowercase substring.
var revertPatterns = []struct {
	substr string
	code   Code
}{
	{"insufficient_output_amount", CodeSlippageExceeded},
	{"too little received", CodeSlippageExceeded},
	{"insufficient output amount", CodeSlippageExceeded},
	{"transferhelper: transfer_from_failed", CodeInsufficientAllowance},
	{"transfer amount exceeds allowance", CodeInsufficientAllowance},
	{"transfer amount exceeds balance", CodeInsufficientFunds},
	{"insufficient funds for gas", CodeInsufficientGas},
	{"expired", CodeDeadlineExpired},
	{"replacement transaction underpriced", CodeTxUnderpriced},
	{"nonce too low", CodeNonceSyncFailed},
	{"execution reverted", CodeExecutionReverted},
}

// ClassifyRevert converts a raw node or router error into a coded AppError.
// Unrecognized errors are wrapped as EXECUTION_REVERTED.
func ClassifyRevert(err error, context string) *AppError {
	if err == nil {
		return nil
	}

	// Already-classified errors keep their code.
	if IsAppError(err) {
		return Wrap(err, GetCode(err), context)
	}

	msg := strings.ToLower(err.Error())
	for _, p := range revertPatterns {
		if strings.Contains(msg, p.substr) {
			return New(p.code, WithContext(context), WithCause(err))
		}
	}
	return New(CodeExecutionReverted, WithContext(context), WithCause(err))
}
