// SPDX-License-Identifier: AGPL-3.0-or-later

package skillerr

import (
	"encoding/json"
	"errors"
)

// Error is a failure tied to one catalog definition.
// It supports wrapping via Unwrap so errors.Is/As reach the cause.
type Error struct {
	def     Definition
	msg     string
	cause   error
	context map[string]any
}

// Option configures an Error at construction.
type Option func(*Error)

// WithCause records the underlying error. The cause is never serialized.
func WithCause(err error) Option {
	return func(e *Error) { e.cause = err }
}

// WithContext attaches structured details that are serialized with the error.
func WithContext(ctx map[string]any) Option {
	return func(e *Error) {
		if len(ctx) > 0 {
			e.context = ctx
		}
	}
}

// New creates an Error from a definition and an optional detail string.
func New(def Definition, detail string, opts ...Option) *Error {
	msg := def.Message
	if detail != "" {
		msg = def.Message + ": " + detail
	}
	e := &Error{def: def, msg: msg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wrap is shorthand for New(def, cause.Error(), WithCause(cause)).
func Wrap(def Definition, cause error) *Error {
	if cause == nil {
		return New(def, "")
	}
	return New(def, cause.Error(), WithCause(cause))
}

func (e *Error) Error() string { return e.msg }

// Unwrap enables errors.Is/As to traverse the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.def.Code == e.def.Code
}

func (e *Error) Code() string           { return e.def.Code }
func (e *Error) Retryable() bool        { return e.def.Retryable }
func (e *Error) Definition() Definition { return e.def }
func (e *Error) Context() map[string]any {
	return e.context
}

// Payload is the serialized form of an Error.
type Payload struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Context   map[string]any `json:"context,omitempty"`
}

// ToJSON returns the serializable view. The cause is dropped so internal
// error graphs never reach skill output.
func (e *Error) ToJSON() Payload {
	return Payload{
		Code:      e.def.Code,
		Message:   e.msg,
		Retryable: e.def.Retryable,
		Context:   e.context,
	}
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSON())
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
