package errors

// Error code constants organized by kind
// E001-E099: Lexical errors
// E100-E199: Semantic errors
// E200-E299: Coercion errors

const (
	// Lexical errors (E001-E099)
	ErrUnexpectedCharacter = "E001"
	ErrIncompleteFilter    = "E002"
	ErrUnbalancedParen     = "E003"
	ErrMisplacedOperator   = "E004"
	ErrDanglingEscape      = "E005"
	ErrUnterminatedQuote   = "E006"

	// Semantic errors (E100-E199)
	ErrUnknownIdentifier     = "E100"
	ErrOperandNotApplicable  = "E101"
	ErrNullCheckNotSupported = "E102"

	// Coercion errors (E200-E299)
	ErrInvalidValue = "E200"
)

// ErrorMessages maps error codes to default messages
var ErrorMessages = map[string]string{
	ErrUnexpectedCharacter: "Unexpected character",
	ErrIncompleteFilter:    "Incomplete filter",
	ErrUnbalancedParen:     "Unbalanced parenthesis",
	ErrMisplacedOperator:   "Logical operator without a preceding filter",
	ErrDanglingEscape:      "Escape character at end of expression",
	ErrUnterminatedQuote:   "Unterminated quoted value",

	ErrUnknownIdentifier:     "Unknown identifier",
	ErrOperandNotApplicable:  "Operand not applicable to identifier",
	ErrNullCheckNotSupported: "Operand cannot be used for a null check",

	ErrInvalidValue: "Invalid value",
}

// GetErrorMessage returns the default message for an error code
func GetErrorMessage(code string) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}

// KindForCode returns the kind for an error code
func KindForCode(code string) Kind {
	switch {
	case code >= "E001" && code <= "E099":
		return Lexical
	case code >= "E100" && code <= "E199":
		return Semantic
	default:
		return Coercion
	}
}
