// Package runtime wires the configured store and channel drivers into a
// single-node haywire instance and keeps the registry of open queues.
//
// Example:
//
//	rt, err := runtime.Open(runtime.Options{Config: config.Default()})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//	if err := rt.Start(ctx); err != nil {
//	    return err
//	}
//	q, _ := rt.QueueForSend("orders")
//	_, _ = q.Enqueue(ctx, message.New([]byte("hello")))
package runtime
