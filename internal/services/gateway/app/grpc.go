package app

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/CrissP24/citrus-flow-sim/internal/store"
)

// ServiceName is the name reported by the gRPC health service next to "".
const ServiceName = "citriflow.Dashboard"

// NewGRPCServer registers grpc.health.v1. Both names report NOT_SERVING until
// MarkServing is called.
func NewGRPCServer(opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

// MarkServing loads the store once and flips the health status to SERVING.
func MarkServing(ctx context.Context, st *store.Holder, hs *health.Server) {
	st.Load(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if st.LastError() != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}
