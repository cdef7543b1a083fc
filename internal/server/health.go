package server

import (
	"context"

	"github.com/vanshika/graphrepo/internal/graph"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// GraphHealthService verifies that the Neo4j server answers.
type GraphHealthService struct {
	Client graph.Client
}

// Probe implements the HealthService interface.
func (s GraphHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.VerifyConnectivity(ctx)
}

// HealthFunc adapts a function to HealthService.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Probe(ctx context.Context) error { return f(ctx) }
