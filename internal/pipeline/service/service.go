// Package service implements the pipeline write path (stage transitions and
// lead conversion) and the read-side aggregator.
package service

import (
	"context"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

// OpportunityStore is the opportunities collection of the record store.
type OpportunityStore interface {
	CreateOpportunity(ctx context.Context, p repository.CreateOpportunityParams) (repository.Opportunity, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (repository.Opportunity, error)
	UpdateOpportunityStage(ctx context.Context, id uuid.UUID, stage domain.Stage, probability int) (repository.Opportunity, error)
	UpdateOpportunityProbability(ctx context.Context, id uuid.UUID, probability int) (repository.Opportunity, error)
	ListOpportunities(ctx context.Context, filter repository.OpportunityFilter) ([]repository.Opportunity, error)
}

// AccountStore is the accounts collection of the record store.
type AccountStore interface {
	CreateAccount(ctx context.Context, p repository.CreateAccountParams) (repository.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (repository.Account, error)
	UpdateAccountStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) (repository.Account, error)
}

// HistoryStore records and lists stage changes.
type HistoryStore interface {
	AppendStageHistory(ctx context.Context, p repository.AppendHistoryParams) error
	ListStageHistory(ctx context.Context, opportunityID uuid.UUID) ([]repository.StageHistoryEntry, error)
}

// Store is everything the service needs from the record store.
type Store interface {
	OpportunityStore
	AccountStore
	HistoryStore
}

// NotificationKind distinguishes the two deal notifications.
type NotificationKind string

const (
	// NotificationDealWon is sent when a lead is converted and the quote signed.
	NotificationDealWon NotificationKind = "deal_won"
	// NotificationDealClosed is sent when a deal reaches live (won) or lost.
	NotificationDealClosed NotificationKind = "deal_closed"
)

// DealOutcome is the result carried by a deal notification.
type DealOutcome string

const (
	OutcomeWon  DealOutcome = "won"
	OutcomeLost DealOutcome = "lost"
)

// DealNotification is the payload handed to the notification sink.
type DealNotification struct {
	OpportunityID uuid.UUID
	AccountID     uuid.UUID
	Title         string
	AccountName   string
	Value         float64
	Stage         domain.Stage
	Outcome       DealOutcome
}

// Notifier is the notification sink. It is fire-and-forget: implementations
// log their own failures.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind NotificationKind, payload DealNotification)
}

// Feedback delivers short user-facing messages to the acting user.
type Feedback interface {
	Acknowledge(ctx context.Context, userID uuid.UUID, message string)
	Alert(ctx context.Context, userID uuid.UUID, message string)
}

// Service runs pipeline writes against the record store.
type Service struct {
	store            Store
	log              *logger.Logger
	eventBus         events.Bus
	notifier         Notifier
	feedback         Feedback
	strictConversion bool
}

// New creates a pipeline service. Conversion eligibility is enforced until
// SetStrictConversion(false) is called.
func New(store Store, log *logger.Logger) *Service {
	return &Service{
		store:            store,
		log:              log,
		strictConversion: true,
	}
}

// SetEventBus injects the bus used for invalidation and domain events.
func (s *Service) SetEventBus(bus events.Bus) {
	s.eventBus = bus
}

// SetNotifier injects the notification sink.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetFeedback injects the acknowledgment channel to the acting user.
func (s *Service) SetFeedback(f Feedback) {
	s.feedback = f
}

// SetStrictConversion toggles the conversion eligibility guard.
func (s *Service) SetStrictConversion(strict bool) {
	s.strictConversion = strict
}

// invalidate publishes the topics synchronously so that a read issued after
// the write returns sees fresh data. Handler failures are logged by the bus.
func (s *Service) invalidate(ctx context.Context, topics ...string) {
	if s.eventBus == nil || len(topics) == 0 {
		return
	}
	_ = s.eventBus.PublishSync(ctx, events.TopicsInvalidated{
		BaseEvent: events.NewBaseEvent(),
		Topics:    topics,
	})
}

func (s *Service) publishStageChanged(ctx context.Context, o repository.Opportunity, from *domain.Stage, source string, actorID *uuid.UUID) {
	if s.eventBus == nil {
		return
	}
	evt := events.OpportunityStageChanged{
		BaseEvent:     events.NewBaseEvent(),
		OpportunityID: o.ID,
		AccountID:     o.AccountID,
		OwnerID:       o.OwnerID,
		ToStage:       string(o.Stage),
		Probability:   o.Probability,
		Source:        source,
		ActorID:       actorID,
	}
	if from != nil {
		evt.FromStage = string(*from)
	}
	s.eventBus.Publish(ctx, evt)
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, kind NotificationKind, payload DealNotification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userID, kind, payload)
}

func (s *Service) acknowledge(ctx context.Context, actorID *uuid.UUID, message string) {
	if s.feedback == nil || actorID == nil {
		return
	}
	s.feedback.Acknowledge(ctx, *actorID, message)
}

func (s *Service) alert(ctx context.Context, actorID *uuid.UUID, message string) {
	if s.feedback == nil || actorID == nil {
		return
	}
	s.feedback.Alert(ctx, *actorID, message)
}
