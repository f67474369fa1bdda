// Package grpcserver hosts the gRPC server for haywire. It registers the
// standard grpc.health.v1 service, whose status follows the runtime's
// health check.
//
// Example:
//
//	s := grpcserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
