// Package inputqueue implements the hand-off queue between message
// producers and consumers.
//
// An InputQueue owns three collections behind one mutex: buffered items,
// a FIFO of readers blocked in Dequeue/BeginDequeue, and a set of waiters
// blocked in WaitForItem. Producers either hand an item straight to the
// oldest reader or buffer it; an item that must not be delivered on the
// producer's goroutine is buffered as pending and handed over later by
// Dispatch, which runs on the scheduler.
//
// Lifecycle is Open -> Shutdown -> Closed (or Open -> Closed). Shutdown
// stops accepting items but lets readers drain what is buffered; Close
// resolves every reader with an empty result and releases every buffered
// item.
//
// No callback, dequeued notification or release func ever runs while the
// mutex is held. Readers and waiters are resolved exactly once: whoever
// removes one from its collection under the mutex owns its resolution, so
// a timeout that loses the race to a producer is a no-op.
package inputqueue
