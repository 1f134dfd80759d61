package service

import (
	"context"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/sanitize"

	"github.com/google/uuid"
)

// CreateAccount stores a new account, defaulting to prospect.
func (s *Service) CreateAccount(ctx context.Context, name string, status string) (repository.Account, error) {
	name = sanitize.Name(name)
	if name == "" {
		return repository.Account{}, apperr.Validation("account name is required").WithOp(opCreate)
	}
	if status == "" {
		status = string(domain.AccountProspect)
	}
	if !domain.IsKnownAccountStatus(status) {
		return repository.Account{}, apperr.Validation("unknown account status").WithOp(opCreate)
	}

	account, err := s.store.CreateAccount(ctx, repository.CreateAccountParams{
		Name:   name,
		Status: domain.AccountStatus(status),
	})
	if err != nil {
		return repository.Account{}, wrapStep(err, opCreate, "could not create account")
	}

	s.invalidate(ctx, events.TopicAccounts)
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (repository.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// CreateOpportunity opens a new deal for an existing account in the lead stage.
func (s *Service) CreateOpportunity(ctx context.Context, accountID uuid.UUID, title string, value float64, ownerID uuid.UUID) (repository.Opportunity, error) {
	title = sanitize.Name(title)
	if title == "" {
		return repository.Opportunity{}, apperr.Validation("opportunity title is required").WithOp(opCreate)
	}
	if value < 0 {
		return repository.Opportunity{}, apperr.Validation("opportunity value cannot be negative").WithOp(opCreate)
	}
	if ownerID == uuid.Nil {
		return repository.Opportunity{}, apperr.Validation("opportunity owner is required").WithOp(opCreate)
	}

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return repository.Opportunity{}, wrapStep(err, opCreate, "could not create opportunity")
	}

	opp, err := s.store.CreateOpportunity(ctx, repository.CreateOpportunityParams{
		AccountID: accountID,
		Title:     title,
		Value:     value,
		OwnerID:   ownerID,
	})
	if err != nil {
		return repository.Opportunity{}, wrapStep(err, opCreate, "could not create opportunity")
	}

	s.invalidate(ctx, stageTopics...)
	s.publishStageChanged(ctx, opp, nil, "created", &ownerID)
	return opp, nil
}

func (s *Service) GetOpportunity(ctx context.Context, id uuid.UUID) (repository.Opportunity, error) {
	return s.store.GetOpportunity(ctx, id)
}

// StageHistory lists recorded stage changes for an opportunity, newest first.
func (s *Service) StageHistory(ctx context.Context, id uuid.UUID) ([]repository.StageHistoryEntry, error) {
	if _, err := s.store.GetOpportunity(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListStageHistory(ctx, id)
}

// RegisterHandlers subscribes the service's own event consumers.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.OpportunityStageChanged{}.EventName(), events.HandlerFunc(s.recordStageChange))
}

func (s *Service) recordStageChange(ctx context.Context, event events.Event) error {
	e, ok := event.(events.OpportunityStageChanged)
	if !ok {
		return nil
	}

	var from *domain.Stage
	if e.FromStage != "" {
		stage := domain.Stage(e.FromStage)
		from = &stage
	}

	return s.store.AppendStageHistory(ctx, repository.AppendHistoryParams{
		OpportunityID: e.OpportunityID,
		FromStage:     from,
		ToStage:       domain.Stage(e.ToStage),
		Probability:   e.Probability,
		Source:        e.Source,
		ChangedBy:     e.ActorID,
		ChangedAt:     e.OccurredAt(),
	})
}
