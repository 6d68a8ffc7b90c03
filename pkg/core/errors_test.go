package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(name string) *Node {
	return &Node{
		Name:             name,
		PackageName:      "analytics",
		OriginalFilePath: "models/" + name + ".sql",
		ResourceType:     ResourceModel,
	}
}

func TestCompilationError_NoNode(t *testing.T) {
	err := NewCompilationError("something broke", nil)
	assert.Equal(t, "compilation error: something broke", err.Error())
	assert.Empty(t, err.Stack)
}

func TestCompilationError_WithNode(t *testing.T) {
	err := NewCompilationError("bad ref", testNode("customers"))
	assert.Equal(t,
		"compilation error in model customers (models/customers.sql): bad ref",
		err.Error())
}

func TestCompilationError_StackFrames(t *testing.T) {
	inner := &Node{Name: "helper", ResourceType: ResourceMacro, OriginalFilePath: "macros/helper.sql"}
	err := NewCompilationError("boom", inner)
	err.AppendFrame(testNode("customers"))

	msg := err.Error()
	assert.Contains(t, msg, "macro helper")
	assert.Contains(t, msg, "called from model customers")
	require.Len(t, err.Stack, 2)
	assert.Equal(t, inner, err.Stack[0])
}

func TestCompilationError_AppendNilFrame(t *testing.T) {
	err := NewCompilationError("x", nil)
	err.AppendFrame(nil)
	assert.Empty(t, err.Stack)
}

func TestAsCompilationError_Wrapped(t *testing.T) {
	inner := NewCompilationError("inner", nil)
	wrapped := fmt.Errorf("outer: %w", inner)

	ce, ok := AsCompilationError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, ce)

	_, ok = AsCompilationError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestInternalError(t *testing.T) {
	err := NewInternalError("context is still nil when calling macro %q", "m")
	assert.Contains(t, err.Error(), "internal error:")
	assert.Contains(t, err.Error(), "(this is a bug in sqlforge)")
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Msg: "expected one of [table view]"}
	assert.Equal(t, "validation error: expected one of [table view]", err.Error())
}
