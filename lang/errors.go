package lang

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// ErrorLevel distinguishes fatal diagnostics from advisory ones.
type ErrorLevel uint8

const (
	LevelError ErrorLevel = iota
	LevelWarning
)

func (l ErrorLevel) String() string {
	if l == LevelWarning {
		return "warning"
	}
	return "error"
}

// ErrorCode is the taxonomy of diagnostics the core pipeline can raise.
type ErrorCode uint8

const (
	CodeSyntaxError ErrorCode = iota
	CodeDuplicateID
	CodeUnknownIdentifier
	CodeTypeMismatch
	CodeDependencyCycle
	CodeTargetNotFound
	CodeAmbiguousTarget
	CodeUnknownField
	CodeMissingField
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSyntaxError:
		return "syntax_error"
	case CodeDuplicateID:
		return "duplicate_id"
	case CodeUnknownIdentifier:
		return "unknown_identifier"
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeDependencyCycle:
		return "dependency_cycle"
	case CodeTargetNotFound:
		return "target_not_found"
	case CodeAmbiguousTarget:
		return "ambiguous_target"
	case CodeUnknownField:
		return "unknown_field"
	case CodeMissingField:
		return "missing_field"
	default:
		return "unknown"
	}
}

// Detail is one key/value pair attached to a LangError for richer
// diagnostics (e.g. the full dotted path of a bad reference).
type Detail struct {
	Key   string
	Value string
}

// LangError is the diagnostic record every pipeline stage surfaces on
// failure. Node is empty when the error is not attributable to a single
// declaration.
type LangError struct {
	Level   ErrorLevel
	Code    ErrorCode
	Message string
	Span    Span
	Node    string
	Details []Detail
}

// Syntax builds a CodeSyntaxError LangError with no attributed node.
func Syntax(span Span, message string) *LangError {
	return &LangError{Level: LevelError, Code: CodeSyntaxError, Message: message, Span: span}
}

// Syntaxf is Syntax with fmt.Sprintf-style formatting.
func Syntaxf(span Span, format string, args ...any) *LangError {
	return Syntax(span, fmt.Sprintf(format, args...))
}

func (e *LangError) Error() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(b)
}

// MarshalJSON produces the compact wire format spec'd for user-visible
// failures: level, code, message, and span start/end line/col only — no
// byte offset, node, or details.
func (e *LangError) MarshalJSON() ([]byte, error) {
	type pos struct {
		Line int `json:"line"`
		Col  int `json:"col"`
	}
	type span struct {
		Start pos `json:"start"`
		End   pos `json:"end"`
	}
	return json.Marshal(&struct {
		Level   string `json:"level"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Span    span   `json:"span"`
	}{
		Level:   e.Level.String(),
		Code:    e.Code.String(),
		Message: e.Message,
		Span: span{
			Start: pos{Line: e.Span.Start.Line, Col: e.Span.Start.Col},
			End:   pos{Line: e.Span.End.Line, Col: e.Span.End.Col},
		},
	})
}

// FormatWithContext renders the error alongside the offending source line
// with a caret pointing at the start column, for terminal/IDE display.
func (e *LangError) FormatWithContext(source string) string {
	lines := strings.Split(source, "\n")
	lineIdx := e.Span.Start.Line - 1
	if lineIdx < 0 || lineIdx >= len(lines) {
		return e.Error()
	}
	line := lines[lineIdx]
	col := e.Span.Start.Col - 1
	if col < 0 {
		col = 0
	}
	if col > len(line) {
		col = len(line)
	}
	caret := strings.Repeat(" ", col) + "^"
	return fmt.Sprintf("%s\n%d | %s\n%s", e.Error(), e.Span.Start.Line, line, caret)
}
