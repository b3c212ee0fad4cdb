// Package clock centralises time access so that deadline, backoff and health
// calculations can be made deterministic in tests.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }
