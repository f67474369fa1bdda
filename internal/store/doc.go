// Package store defines where queue messages live and how per-queue
// sequence numbers are allocated. Implementations live in subpackages.
package store
