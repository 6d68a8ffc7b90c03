package core

import (
	"errors"
	"fmt"
	"strings"
)

// CompilationError is the single fatal error kind the templating core
// surfaces to callers: parse failures, undefined references, and runtime
// macro errors all propagate as one of these. Stack holds the node frames the
// failure passed through, innermost first, so callers can report
// "macro X failed, called from model Y" traces.
type CompilationError struct {
	Msg   string
	Node  *Node
	Stack []*Node
}

// NewCompilationError builds a CompilationError attributed to node. A nil
// node is allowed; the error then carries no attribution frame.
func NewCompilationError(msg string, node *Node) *CompilationError {
	e := &CompilationError{Msg: msg, Node: node}
	if node != nil {
		e.Stack = []*Node{node}
	}
	return e
}

// CompilationErrorf builds an attributed error from a format string.
func CompilationErrorf(node *Node, format string, args ...any) *CompilationError {
	return NewCompilationError(fmt.Sprintf(format, args...), node)
}

func (e *CompilationError) Error() string {
	var b strings.Builder
	b.WriteString("compilation error")
	if e.Node != nil {
		fmt.Fprintf(&b, " in %s %s (%s)", e.Node.ResourceType, e.Node.Name, e.Node.OriginalFilePath)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	for i, frame := range e.Stack {
		if i == 0 && frame == e.Node {
			continue
		}
		fmt.Fprintf(&b, "\n  called from %s %s", frame.ResourceType, frame.Name)
	}
	return b.String()
}

// AppendFrame records that the failure propagated through node.
func (e *CompilationError) AppendFrame(node *Node) {
	if node != nil {
		e.Stack = append(e.Stack, node)
	}
}

// AsCompilationError unwraps err into a *CompilationError if it is one.
func AsCompilationError(err error) (*CompilationError, bool) {
	var ce *CompilationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// InternalError marks a programming error inside sqlforge itself, as opposed
// to a user mistake in SQL or configuration. These must surface as tool bugs.
type InternalError struct {
	Msg string
}

func NewInternalError(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg + " (this is a bug in sqlforge)"
}

// ValidationError reports a failed validation.any check from a template.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Msg
}
