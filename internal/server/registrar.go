package server

import (
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
)

// Registrar mounts one service's HTTP routes.
type Registrar interface {
	Register(router chi.Router)
}

// GRPCRegistrar registers one service on the gRPC server.
type GRPCRegistrar interface {
	Register(s *grpc.Server)
}
