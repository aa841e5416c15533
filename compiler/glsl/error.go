// Package glsl defines the error type shared by semantic analysis,
// code generation and the fixed-point transform.
package glsl

import (
	"fmt"
	"strings"
)

type (
	Code string

	// Error is a language-level diagnostic: a stable code, a message,
	// an optional source span and free-form notes. Internal codes
	// indicate a compiler bug, never a user mistake.
	Error struct {
		Code  Code
		Msg   string
		Pos   int    // byte offset into the source, -1 if unknown
		Span  string // source excerpt, may be empty
		Notes []string
	}
)

const (
	CodeSyntax         Code = "syntax"
	CodeTypeMismatch   Code = "type-mismatch"
	CodeArityMismatch  Code = "arity-mismatch"
	CodeCondNotBool    Code = "cond-not-bool"
	CodeUndeclared     Code = "undeclared"
	CodeRedeclared     Code = "redeclared"
	CodeBadConstructor Code = "bad-constructor"
	CodeBadSwizzle     Code = "bad-swizzle"
	CodeBadOperands    Code = "bad-operands"
	CodeNotAssignable  Code = "not-assignable"
	CodeReturnMismatch Code = "return-mismatch"
	CodeUnsupported    Code = "unsupported"

	// CodeInternal covers invariant violations such as a value missing
	// from the transform value map or a dominance break.
	CodeInternal Code = "internal"
)

func New(code Code, pos int, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
		Pos:  pos,
	}
}

func Internal(format string, args ...any) *Error {
	return New(CodeInternal, -1, format, args...)
}

func (e *Error) Note(format string, args ...any) *Error {
	e.Notes = append(e.Notes, fmt.Sprintf(format, args...))

	return e
}

func (e *Error) WithSpan(src []byte, pos, end int) *Error {
	e.Pos = pos

	if pos >= 0 && end <= len(src) && pos < end {
		e.Span = string(src[pos:end])
	}

	return e
}

func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s", e.Code, e.Msg)

	if e.Span != "" {
		fmt.Fprintf(&b, " (at %q)", e.Span)
	} else if e.Pos >= 0 {
		fmt.Fprintf(&b, " (at offset %d)", e.Pos)
	}

	for _, n := range e.Notes {
		b.WriteString("\n\tnote: ")
		b.WriteString(n)
	}

	return b.String()
}
