// Package inspection provides the vehicle condition inspection bounded
// context: the session state machine, photo capture and upload, analysis,
// signatures and the terminal lock.
package inspection

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetgate/internal/ai"
	"fleetgate/internal/events"
	apphttp "fleetgate/internal/http"
	"fleetgate/internal/inspection/domain"
	"fleetgate/internal/inspection/handler"
	"fleetgate/internal/inspection/repository"
	"fleetgate/internal/inspection/service"
	"fleetgate/internal/storage"
	"fleetgate/platform/config"
	"fleetgate/platform/logger"
	"fleetgate/platform/validator"
)

// Module is the inspection bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the inspection module. The step
// catalogue is loaded from the configured YAML file, falling back to the
// built-in sequence.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	storageSvc storage.Service,
	analyzer ai.Analyzer,
	geocoder service.Geocoder,
	cfg *config.Config,
	val *validator.Validator,
	log *logger.Logger,
) (*Module, error) {
	catalogue, err := domain.LoadCatalogue(cfg.StepCataloguePath)
	if err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, storageSvc, analyzer, geocoder, eventBus, catalogue,
		service.Buckets{
			Photos:     cfg.GetMinioBucketInspectionPhotos(),
			Signatures: cfg.GetMinioBucketSignatures(),
		}, log)

	return &Module{
		handler: handler.New(svc, val),
		svc:     svc,
		repo:    repo,
	}, nil
}

// Service exposes the workflow service for cross-module collaborators
// (report generation).
func (m *Module) Service() *service.Service {
	return m.svc
}

// Repository exposes the session store for cross-module reads.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Wait blocks until background uploads and analyses finish. Called during
// shutdown.
func (m *Module) Wait() {
	m.svc.Wait()
}

func (m *Module) Name() string {
	return "inspection"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/inspections"))
	m.handler.RegisterMissionRoutes(ctx.V1.Group("/missions"))
}
