// Package notification delivers deal notifications to users: the in-app
// inbox, live SSE pushes and email.
package notification

import (
	"context"

	"crm_pipeline_backend/internal/events"
	apphttp "crm_pipeline_backend/internal/http"
	notifhandler "crm_pipeline_backend/internal/notification/handler"
	"crm_pipeline_backend/internal/notification/inapp"
	"crm_pipeline_backend/internal/notification/sse"
	"crm_pipeline_backend/platform/httpkit"
	"crm_pipeline_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module is the notification bounded context module implementing http.Module.
type Module struct {
	log          *logger.Logger
	sse          *sse.Service
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
	dispatcher   *Dispatcher
}

// New creates a new notification module on top of store.
func New(store inapp.Store, log *logger.Logger) *Module {
	sseSvc := sse.New(log)
	inAppSvc := inapp.NewService(store, log)
	inAppSvc.SetSSE(sseSvc)

	return &Module{
		log:          log,
		sse:          sseSvc,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
		dispatcher:   NewDispatcher(inAppSvc, log),
	}
}

func (m *Module) Name() string {
	return "notification"
}

// SSE returns the live connection hub.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

// Dispatcher returns the deal notification sink.
func (m *Module) Dispatcher() *Dispatcher {
	return m.dispatcher
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	group.GET("/stream", m.sse.Handler(userIDFromContext))
	m.inAppHandler.RegisterRoutes(group)
}

// RegisterHandlers subscribes to pipeline events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.TopicsInvalidated{}.EventName(), m)
	bus.Subscribe(events.AccountConverted{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.TopicsInvalidated:
		m.sse.Broadcast(sse.Event{
			Type: sse.EventPipelineInvalidated,
			Data: gin.H{"topics": e.Topics},
		})
		return nil
	case events.AccountConverted:
		m.log.WithContext(ctx).Info("account converted to customer",
			"accountId", e.AccountID,
			"accountName", e.AccountName,
			"opportunityId", e.OpportunityID,
			"previousStatus", e.PreviousState,
		)
		return nil
	default:
		return nil
	}
}

// Close disconnects live clients and waits for in-process email delivery.
func (m *Module) Close() {
	m.sse.Close()
	m.dispatcher.Wait()
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
