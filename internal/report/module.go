package report

import (
	"context"

	"fleetgate/internal/events"
	apphttp "fleetgate/internal/http"
	"fleetgate/internal/scheduler"
	"fleetgate/platform/logger"
)

// Module wires report generation into the application: it listens for locked
// sessions, hands generation to the queue, and serves public report links.
type Module struct {
	svc     *Service
	handler *Handler
	sched   scheduler.ReportScheduler
	log     *logger.Logger
}

func NewModule(svc *Service, sched scheduler.ReportScheduler, bus events.Bus, log *logger.Logger) *Module {
	m := &Module{
		svc:     svc,
		handler: NewHandler(svc, log),
		sched:   sched,
		log:     log,
	}

	bus.Subscribe(events.InspectionLocked{}.EventName(), events.HandlerFunc(m.onInspectionLocked))

	return m
}

func (m *Module) Name() string { return "report" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.Public)
}

// Service exposes the report service for the worker binary.
func (m *Module) Service() *Service { return m.svc }

// onInspectionLocked enqueues report generation for the locked session. When
// no queue is configured the report is generated inline; the bus already runs
// handlers off the request path.
func (m *Module) onInspectionLocked(ctx context.Context, event events.Event) error {
	locked, ok := event.(events.InspectionLocked)
	if !ok {
		return nil
	}

	if m.sched == nil {
		return m.svc.Generate(ctx, locked.SessionID)
	}

	return m.sched.EnqueueInspectionReport(ctx, scheduler.InspectionReportPayload{
		SessionID: locked.SessionID.String(),
		MissionID: locked.MissionID.String(),
		Kind:      locked.Kind,
	})
}
