package types

import "fmt"

// ErrorCode identifies the kind of a FormulaError.
type ErrorCode string

// Error codes reported to hosts in ParseResults.error.
const (
	CodeSyntax       ErrorCode = "SyntaxError"
	CodeParse        ErrorCode = "ParseError"
	CodeName         ErrorCode = "NameError"
	CodeValue        ErrorCode = "ValueError"
	CodeNum          ErrorCode = "NumError"
	CodeRef          ErrorCode = "RefError"
	CodeDivByZero    ErrorCode = "DivByZero"
	CodeCircularRef  ErrorCode = "CircularRef"
	CodeNotAvailable ErrorCode = "NotAvailable"
	CodeGeneric      ErrorCode = "GenericError"
)

// displayCodes maps error codes to the text a spreadsheet shows in a cell.
var displayCodes = map[ErrorCode]string{
	CodeSyntax:       "#ERROR!",
	CodeParse:        "#ERROR!",
	CodeName:         "#NAME?",
	CodeValue:        "#VALUE!",
	CodeNum:          "#NUM!",
	CodeRef:          "#REF!",
	CodeDivByZero:    "#DIV/0!",
	CodeCircularRef:  "#CIRCULAR!",
	CodeNotAvailable: "#N/A",
	CodeGeneric:      "#ERROR!",
}

// CodeFromDisplay resolves an error literal such as "#DIV/0!" typed into a
// formula. The lookup is exact; callers upper-case first.
func CodeFromDisplay(display string) (ErrorCode, bool) {
	for code, d := range displayCodes {
		if d == display && code != CodeSyntax && code != CodeParse {
			return code, true
		}
	}
	return "", false
}

// FormulaError is an error that flows through evaluation as a value.
// Offset is the byte offset of the offending token for syntax and parse
// errors, and -1 otherwise.
type FormulaError struct {
	Code    ErrorCode
	Message string
	Offset  int
}

// Error implements the error interface.
func (e *FormulaError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s (at offset %d)", e.Code, e.Message, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Display returns the spreadsheet display form, e.g. "#DIV/0!".
func (e *FormulaError) Display() string {
	if d, ok := displayCodes[e.Code]; ok {
		return d
	}
	return "#ERROR!"
}

// Is matches another *FormulaError by code so errors.Is works on codes.
func (e *FormulaError) Is(target error) bool {
	t, ok := target.(*FormulaError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ToValue converts e into an error value.
func (e *FormulaError) ToValue() Value {
	return NewError(e)
}

// NewFormulaError creates an error with the given code and no offset.
func NewFormulaError(code ErrorCode, msg string) *FormulaError {
	return &FormulaError{Code: code, Message: msg, Offset: -1}
}

// NewSyntaxError creates a SyntaxError for a lexing failure at offset.
func NewSyntaxError(msg string, offset int) *FormulaError {
	return &FormulaError{Code: CodeSyntax, Message: msg, Offset: offset}
}

// NewParseError creates a ParseError for a grammar failure at offset.
func NewParseError(msg string, offset int) *FormulaError {
	return &FormulaError{Code: CodeParse, Message: msg, Offset: offset}
}

// NewNameError creates a NameError.
func NewNameError(msg string) *FormulaError {
	return NewFormulaError(CodeName, msg)
}

// NewValueError creates a ValueError.
func NewValueError(msg string) *FormulaError {
	return NewFormulaError(CodeValue, msg)
}

// NewNumError creates a NumError.
func NewNumError(msg string) *FormulaError {
	return NewFormulaError(CodeNum, msg)
}

// NewRefError creates a RefError.
func NewRefError(msg string) *FormulaError {
	return NewFormulaError(CodeRef, msg)
}

// NewDivByZeroError creates a DivByZero error.
func NewDivByZeroError() *FormulaError {
	return NewFormulaError(CodeDivByZero, "division by zero")
}

// NewCircularRefError creates a CircularRef error for a cell on a cycle.
func NewCircularRefError(msg string) *FormulaError {
	return NewFormulaError(CodeCircularRef, msg)
}

// NewNotAvailableError creates a NotAvailable (#N/A) error.
func NewNotAvailableError(msg string) *FormulaError {
	return NewFormulaError(CodeNotAvailable, msg)
}

// NewGenericError creates a GenericError carrying a raw message.
func NewGenericError(msg string) *FormulaError {
	return NewFormulaError(CodeGeneric, msg)
}
