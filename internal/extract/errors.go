package extract

import "fmt"

// Error codes. E2xx are declaration errors.
const (
	CodeSyntax           = "E201"
	CodeGeneric          = "E202"
	CodeMissingReceiver  = "E203"
	CodeValueReceiver    = "E204"
	CodeReturnsReference = "E205"
	CodeDuplicate        = "E206"
	CodeBadTarget        = "E207"
	CodeBadParameter     = "E208"
	CodeTraitImpl        = "E209"
)

// Error reports an unusable declaration with its position.
type Error struct {
	Code    string
	Item    string // declaration the error belongs to, may be empty
	Message string
	File    string
	Line    int
	Col     int
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Item != "" {
		msg = e.Item + ": " + msg
	}
	if e.Line > 0 {
		file := e.File
		if file == "" {
			file = "<input>"
		}
		return fmt.Sprintf("%s:%d:%d: %s %s", file, e.Line, e.Col, e.Code, msg)
	}
	return fmt.Sprintf("%s %s", e.Code, msg)
}

func errorAt(tok Token, code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Line: tok.Line, Col: tok.Col}
}
