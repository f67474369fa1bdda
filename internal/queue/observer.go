package queue

import "time"

// Observer receives queue activity, typically to export metrics.
type Observer interface {
	ObserveEnqueue(queue string, bytes int)
	ObserveDequeue(queue string, wait time.Duration)
	ObserveTimeout(queue string)
	ObserveDepth(queue string, depth int)
}

// NoopObserver discards observations.
type NoopObserver struct{}

func (NoopObserver) ObserveEnqueue(string, int)           {}
func (NoopObserver) ObserveDequeue(string, time.Duration) {}
func (NoopObserver) ObserveTimeout(string)                {}
func (NoopObserver) ObserveDepth(string, int)             {}
