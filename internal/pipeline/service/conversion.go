package service

import (
	"context"
	"fmt"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// ConversionResult identifies the records touched by a conversion.
type ConversionResult struct {
	OpportunityID          uuid.UUID `json:"opportunityId"`
	AccountID              uuid.UUID `json:"accountId"`
	AccountAlreadyCustomer bool      `json:"accountAlreadyCustomer"`
	Message                string    `json:"message"`
}

var conversionTopics = []string{
	events.TopicOpportunities,
	events.TopicOpportunitiesByStage,
	events.TopicAccounts,
	events.TopicPipelineStats,
}

// ConvertToCustomer marks the opportunity's account as a customer and then
// moves the opportunity to quote_signed. The two writes are not atomic: if
// the account write commits and the opportunity write fails, the returned
// error has KindPartialSequence and the whole call may be retried.
func (s *Service) ConvertToCustomer(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (ConversionResult, error) {
	opp, err := s.store.GetOpportunity(ctx, id)
	if err != nil {
		return s.failConversion(ctx, actorID, wrapStep(err, opConvert, "could not load opportunity"))
	}

	if s.strictConversion && !domain.IsConversionEligible(opp.Stage) {
		return s.failConversion(ctx, actorID, apperr.Validation(
			fmt.Sprintf("opportunity in stage %s cannot be converted; move it to Quote Sent or Negotiation first", opp.Stage.Label()),
		).WithOp(opConvert))
	}

	account, err := s.store.GetAccount(ctx, opp.AccountID)
	if err != nil {
		return s.failConversion(ctx, actorID, wrapStep(err, opConvert, "could not load account"))
	}

	// Step 1: account status.
	alreadyCustomer := account.Status == domain.AccountCustomer
	if !alreadyCustomer {
		if _, err := s.store.UpdateAccountStatus(ctx, account.ID, domain.AccountCustomer); err != nil {
			return s.failConversion(ctx, actorID, wrapStep(err, opConvert, fmt.Sprintf("could not mark %s as customer", account.Name)))
		}
	}

	// Step 2: opportunity stage.
	updated, err := s.store.UpdateOpportunityStage(ctx, opp.ID, domain.ConversionTarget, domain.ConversionProbability)
	if err != nil {
		if alreadyCustomer {
			return s.failConversion(ctx, actorID, wrapStep(err, opConvert, "could not move opportunity to Quote Signed"))
		}
		s.log.WithContext(ctx).Error("conversion stopped after account update",
			"opportunityId", opp.ID, "accountId", account.ID, "error", err)
		partial := apperr.PartialSequence(msgPartialConversion, err).WithOp(opConvert).WithDetails(map[string]interface{}{
			"opportunityId": opp.ID,
			"accountId":     account.ID,
			"failedStep":    "opportunity_stage",
		})
		// The account write is committed; readers must see it.
		s.invalidate(ctx, events.TopicAccounts)
		return s.failConversion(ctx, actorID, partial)
	}

	// Step 3: invalidation.
	s.invalidate(ctx, conversionTopics...)
	from := opp.Stage
	s.publishStageChanged(ctx, updated, &from, "conversion", actorID)
	if !alreadyCustomer && s.eventBus != nil {
		s.eventBus.Publish(ctx, events.AccountConverted{
			BaseEvent:     events.NewBaseEvent(),
			AccountID:     account.ID,
			AccountName:   account.Name,
			OpportunityID: opp.ID,
			PreviousState: string(account.Status),
		})
	}

	// Step 4: owner notification.
	s.notify(ctx, updated.OwnerID, NotificationDealWon, DealNotification{
		OpportunityID: updated.ID,
		AccountID:     account.ID,
		Title:         updated.Title,
		AccountName:   account.Name,
		Value:         updated.Value,
		Stage:         updated.Stage,
		Outcome:       OutcomeWon,
	})

	message := fmt.Sprintf("%s is now a customer and %s is signed", account.Name, updated.Title)
	if alreadyCustomer {
		message = fmt.Sprintf("%s was already a customer; %s is signed", account.Name, updated.Title)
	}
	s.acknowledge(ctx, actorID, message)

	s.log.WithContext(ctx).Info("lead converted to customer",
		"opportunityId", updated.ID, "accountId", account.ID, "alreadyCustomer", alreadyCustomer)

	return ConversionResult{
		OpportunityID:          updated.ID,
		AccountID:              account.ID,
		AccountAlreadyCustomer: alreadyCustomer,
		Message:                message,
	}, nil
}

func (s *Service) failConversion(ctx context.Context, actorID *uuid.UUID, err error) (ConversionResult, error) {
	s.alert(ctx, actorID, apperr.Message(err, "conversion failed"))
	return ConversionResult{}, err
}
