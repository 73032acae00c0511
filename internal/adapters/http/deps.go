package http

import (
	"github.com/nats-io/nats.go"

	"github.com/meshsight/meshsight/internal/adapters/postgres"
	"github.com/meshsight/meshsight/internal/adapters/valkey"
	"github.com/meshsight/meshsight/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Projects *usecases.ProjectService
	Nodes    *usecases.NodeService
	Coverage *usecases.CoverageService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
