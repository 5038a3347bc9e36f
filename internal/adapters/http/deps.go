package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/taskpin/internal/adapters/postgres"
	"github.com/samirrijal/taskpin/internal/adapters/valkey"
	"github.com/samirrijal/taskpin/internal/core/ports"
	"github.com/samirrijal/taskpin/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Tasks   *usecases.TaskService
	Geocode *usecases.GeocodeService
	// Events mirrors WebSocket navigation activity to the broker. Optional.
	Events ports.EventPublisher
	// ThresholdKm is the arrival radius for WebSocket navigation sessions.
	ThresholdKm float64
	Version     string
	// OpenAPIPath overrides DefaultOpenAPIPath for /docs.
	OpenAPIPath string

	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache
}
