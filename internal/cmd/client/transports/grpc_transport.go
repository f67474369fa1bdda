// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GrpcTransport implements HealthTransport over the grpc.health.v1 service.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

var _ HealthTransport = (*GrpcTransport)(nil)

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

func (t *GrpcTransport) withClient(ctx context.Context, fn func(cli healthpb.HealthClient) error) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(healthpb.NewHealthClient(conn))
}

// Check returns the serving status name, e.g. "SERVING".
func (t *GrpcTransport) Check(ctx context.Context, service string) (string, error) {
	var status string
	err := t.withClient(ctx, func(cli healthpb.HealthClient) error {
		res, err := cli.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return err
		}
		status = res.GetStatus().String()
		return nil
	})
	return status, err
}
