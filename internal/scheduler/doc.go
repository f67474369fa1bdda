// Package scheduler runs deferred callbacks off the caller's goroutine.
//
// The input queue uses it to hand items to waiting readers without running
// consumer code on the producer's stack or under the queue mutex. Callbacks
// start in submission order; a callback that panics is recovered and logged.
package scheduler
