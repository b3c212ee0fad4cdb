// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Callers should treat the returned identifiers as opaque strings.
package idgen

import "github.com/google/uuid"

// NewFunc produces a new globally unique identifier. Override in tests for
// deterministic output.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier as string.
func New() string { return NewFunc() }
