package stencil

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. None of these abort a whole document: they are handled at
// token or shape granularity and surface as log entries or diagnostic text.
var (
	// ErrOutOfRange marks an indexed access past the data available in the current window
	ErrOutOfRange = errors.New("index out of range")
	// ErrNoParent is returned when a shape has no tree to be replaced in
	ErrNoParent = errors.New("shape has no parent")
	// ErrUnsupportedContentType is returned for images the slide cannot embed
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrAssetNotFound is returned when an image file does not exist
	ErrAssetNotFound = errors.New("asset not found")
	// ErrIndexOutOfBounds is returned when index arithmetic leaves the sane range
	ErrIndexOutOfBounds = errors.New("index arithmetic out of bounds")
	// ErrUnknownFunction is returned when a namespaced call names no registered function
	ErrUnknownFunction = errors.New("unknown function")
)

// ParseError is a malformed ${...} token. It is attached to the token and
// never raised to the caller.
type ParseError struct {
	Reason string
	Raw    string
	Offset int
}

func (e *ParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("malformed token at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("malformed token %q at offset %d: %s", e.Raw, e.Offset, e.Reason)
}

// NewParseError creates a ParseError for the raw token text starting at offset
func NewParseError(reason, raw string, offset int) error {
	return &ParseError{Reason: reason, Raw: raw, Offset: offset}
}

// EvaluationError wraps a failure of the expression engine
type EvaluationError struct {
	Expr  string
	Cause error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Expr, e.Cause)
}

func (e *EvaluationError) Unwrap() error { return e.Cause }

// NewEvaluationError creates an EvaluationError
func NewEvaluationError(expr string, cause error) error {
	return &EvaluationError{Expr: expr, Cause: cause}
}

// FunctionError is a namespaced function that failed or panicked
type FunctionError struct {
	Function string
	Args     []string
	Cause    error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("%s(%s): %v", e.Function, strings.Join(e.Args, ", "), e.Cause)
}

func (e *FunctionError) Unwrap() error { return e.Cause }

// NewFunctionError creates a FunctionError
func NewFunctionError(function string, args []string, cause error) error {
	return &FunctionError{Function: function, Args: args, Cause: cause}
}

// DocumentError is a structural failure on a slide part: parsing, marshaling
// or a missing shape tree.
type DocumentError struct {
	Operation string
	Part      string
	Cause     error
}

func (e *DocumentError) Error() string {
	msg := e.Operation
	if e.Part != "" {
		msg += " " + e.Part
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DocumentError) Unwrap() error { return e.Cause }

// NewDocumentError creates a DocumentError for the named part
func NewDocumentError(operation, part string, cause error) error {
	return &DocumentError{Operation: operation, Part: part, Cause: cause}
}

// ShapeError records which shape a per-shape failure belongs to. These are
// collected in a ProcessReport, never returned from a pass.
type ShapeError struct {
	Slide     string
	ShapeID   int
	ShapeName string
	Cause     error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s shape %d (%s): %v", e.Slide, e.ShapeID, e.ShapeName, e.Cause)
}

func (e *ShapeError) Unwrap() error { return e.Cause }

// NewShapeError wraps err with its shape location. A nil err stays nil.
func NewShapeError(slide string, shapeID int, shapeName string, err error) error {
	if err == nil {
		return nil
	}
	return &ShapeError{Slide: slide, ShapeID: shapeID, ShapeName: shapeName, Cause: err}
}

// MultiError collects the failures of a pass
type MultiError struct {
	errs []error
}

// NewMultiError creates an empty collector
func NewMultiError() *MultiError {
	return &MultiError{}
}

// Add appends err, ignoring nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errs = append(m.errs, err)
	}
}

func (m *MultiError) Len() int { return len(m.errs) }

func (m *MultiError) Errors() []error { return m.errs }

// Err returns nil when empty, the single error when there is one, and the
// collector otherwise.
func (m *MultiError) Err() error {
	switch len(m.errs) {
	case 0:
		return nil
	case 1:
		return m.errs[0]
	}
	return m
}

func (m *MultiError) Unwrap() []error { return m.errs }

func (m *MultiError) Error() string {
	if len(m.errs) == 0 {
		return "no errors"
	}
	if len(m.errs) == 1 {
		return m.errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:", len(m.errs))
	for i, err := range m.errs {
		fmt.Fprintf(&b, "\n  [%d] %v", i+1, err)
	}
	return b.String()
}

// RecoverError converts a recovered panic value into an error
func RecoverError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic recovered: %w", err)
	}
	return fmt.Errorf("panic recovered: %v", r)
}

func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

func IsEvaluationError(err error) bool {
	var target *EvaluationError
	return errors.As(err, &target)
}

func IsFunctionError(err error) bool {
	var target *FunctionError
	return errors.As(err, &target)
}

func IsDocumentError(err error) bool {
	var target *DocumentError
	return errors.As(err, &target)
}

// IsShapeError reports whether err carries a shape location
func IsShapeError(err error) bool {
	var target *ShapeError
	return errors.As(err, &target)
}
