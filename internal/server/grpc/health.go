package grpcserver

import (
	"context"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/haywire/internal/runtime"
)

// ServiceName is the health service name reported alongside the overall
// ("") status.
const ServiceName = "haywire.Queues"

// healthSvc is the stock grpc health server whose status is refreshed from
// the runtime on every Check.
type healthSvc struct {
	*health.Server
	rt *runtime.Runtime
}

func newHealthSvc(rt *runtime.Runtime) *healthSvc {
	h := &healthSvc{Server: health.NewServer(), rt: rt}
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return h
}

func (h *healthSvc) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	h.refresh(ctx)
	return h.Server.Check(ctx, req)
}

func (h *healthSvc) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.rt.CheckHealth(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.SetServingStatus("", status)
	h.SetServingStatus(ServiceName, status)
}
