package template

import "fmt"

// ParseError reports a template that failed to parse, with the byte
// offset of the failure.
type ParseError struct {
	Location int
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template parse error at %d: %s", e.Location, e.Message)
}

// UnknownFieldError is returned when a Field expression names something
// not present in overrides or the selected profile.
type UnknownFieldError struct {
	Field Identifier
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// UnknownFunctionError is returned when a Call names a function not in
// the registry.
type UnknownFunctionError struct {
	Function Identifier
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Function)
}

// ArityMismatchError is returned when a call's argument count doesn't
// match the function's signature.
type ArityMismatchError struct {
	Function Identifier
	Message  string
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Function, e.Message)
}

// TypeMismatchError is returned when an argument or field value doesn't
// match the type a function expects.
type TypeMismatchError struct {
	Context string
	Message string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Context, e.Message)
}

// PromptCancelledError is returned when the user cancels a prompt()
// rendezvous.
type PromptCancelledError struct {
	Label string
}

func (e *PromptCancelledError) Error() string {
	return fmt.Sprintf("prompt %q cancelled", e.Label)
}

// NestedRenderError wraps an error raised while evaluating a nested
// expression (e.g. a call argument), retaining the outer context.
type NestedRenderError struct {
	Context string
	Cause   error
}

func (e *NestedRenderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Context, e.Cause)
}

func (e *NestedRenderError) Unwrap() error { return e.Cause }
