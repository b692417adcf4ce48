// Package missions provides the transfer mission bounded context module.
package missions

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "fleetgate/internal/http"
	"fleetgate/internal/missions/handler"
	"fleetgate/internal/missions/repository"
	"fleetgate/platform/logger"
	"fleetgate/platform/validator"
)

// Module is the missions bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

// NewModule creates and initializes the missions module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	return &Module{
		handler: handler.New(repo, val, log),
		repo:    repo,
	}
}

// Repository exposes the mission store for cross-module reads.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) Name() string {
	return "missions"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/missions"))
}
