package jsengine

import "fmt"

// Kind is the fixed part of the host-side error taxonomy. Zero means "no
// fixed kind" — the error carries a custom Code instead, mirroring the
// original's Error::Code(i32) variant.
type Kind int

const (
	KindUnknown Kind = iota + 1
	KindJavascript
	KindEngine
	KindBoundaryLayerSerde
	KindScheduler
	KindFileSystem
	KindNotValidProcedureName
)

// TimeoutCode is the fixed numeric code a Procedure Driver timeout reports,
// carried over unchanged from the original's Error::Timeout => 143.
const TimeoutCode = 143

// Error is the host-side fault a call can fail with: either a fixed Kind or
// a custom Code, never both. Script-reported (code, message) pairs are not
// represented by this type — those travel as types.ErrorValue/ResultType.
type Error struct {
	Kind    Kind
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.CodeNum())
}

// CodeNum returns the stable integer the original's as_code_num() produced.
func (e *Error) CodeNum() int {
	if e.Kind == 0 {
		return e.Code
	}
	return int(e.Kind)
}

func kindError(k Kind, message string) *Error { return &Error{Kind: k, Message: message} }

func codeError(code int, message string) *Error { return &Error{Code: code, Message: message} }

// Timeout builds the fixed timeout error the Procedure Driver reports when
// its wall-clock race is lost to the timer.
func Timeout() *Error { return codeError(TimeoutCode, "Timed out. Retrying soon...") }
