package service

import (
	"context"
	"fmt"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// TransitionResult is the outcome of a stage transition.
type TransitionResult struct {
	Opportunity repository.Opportunity `json:"opportunity"`
	Message     string                 `json:"message"`
}

var stageTopics = []string{
	events.TopicOpportunities,
	events.TopicOpportunitiesByStage,
	events.TopicPipelineStats,
}

// TransitionStage moves an opportunity to stage and sets the probability
// from the stage table in a single write. Moving to the current stage is not
// short-circuited. Reaching live or lost notifies the owner.
func (s *Service) TransitionStage(ctx context.Context, id uuid.UUID, stage string, actorID *uuid.UUID) (TransitionResult, error) {
	target, ok := domain.ParseStage(stage)
	if !ok {
		err := apperr.Validation(fmt.Sprintf("unknown pipeline stage %q", stage)).WithOp(opTransition)
		s.alert(ctx, actorID, err.Message)
		return TransitionResult{}, err
	}
	probability, _ := domain.ProbabilityFor(target)

	updated, err := s.store.UpdateOpportunityStage(ctx, id, target, probability)
	if err != nil {
		wrapped := wrapStep(err, opTransition, fmt.Sprintf("could not move opportunity to %s", target.Label()))
		s.log.WithContext(ctx).Warn("stage transition failed", "opportunityId", id, "stage", target, "error", err)
		s.alert(ctx, actorID, apperr.Message(wrapped, "stage change failed"))
		return TransitionResult{}, wrapped
	}

	message := fmt.Sprintf("%s (%s) moved to %s", updated.Title, updated.AccountName, target.Label())
	s.acknowledge(ctx, actorID, message)

	s.invalidate(ctx, stageTopics...)
	s.publishStageChanged(ctx, updated, nil, "transition", actorID)

	if target.IsClosing() {
		outcome := OutcomeWon
		if target == domain.StageLost {
			outcome = OutcomeLost
		}
		s.notify(ctx, updated.OwnerID, NotificationDealClosed, DealNotification{
			OpportunityID: updated.ID,
			AccountID:     updated.AccountID,
			Title:         updated.Title,
			AccountName:   updated.AccountName,
			Value:         updated.Value,
			Stage:         target,
			Outcome:       outcome,
		})
	}

	s.log.WithContext(ctx).Info("opportunity stage changed", "opportunityId", updated.ID, "stage", target, "probability", probability)

	return TransitionResult{Opportunity: updated, Message: message}, nil
}

// UpdateProbability overrides the probability of an opportunity without
// changing its stage.
func (s *Service) UpdateProbability(ctx context.Context, id uuid.UUID, probability int) (repository.Opportunity, error) {
	if probability < 0 || probability > 100 {
		return repository.Opportunity{}, apperr.Validation("probability must be between 0 and 100").WithOp(opProbability)
	}

	updated, err := s.store.UpdateOpportunityProbability(ctx, id, probability)
	if err != nil {
		return repository.Opportunity{}, wrapStep(err, opProbability, "could not update probability")
	}

	s.invalidate(ctx, stageTopics...)
	return updated, nil
}
