package adapters

import (
	"context"

	"crm_pipeline_backend/internal/notification"
	pipelinesvc "crm_pipeline_backend/internal/pipeline/service"

	"github.com/google/uuid"
)

// DealNotifier is the narrow interface of the notification dispatcher used
// by the pipeline.
type DealNotifier interface {
	NotifyDeal(ctx context.Context, userID uuid.UUID, kind string, deal notification.Deal)
}

// PipelineNotifier adapts the notification dispatcher to the pipeline
// service's Notifier port.
type PipelineNotifier struct {
	dispatcher DealNotifier
}

// NewPipelineNotifier creates a notifier adapter.
func NewPipelineNotifier(dispatcher DealNotifier) *PipelineNotifier {
	return &PipelineNotifier{dispatcher: dispatcher}
}

// Notify implements pipelinesvc.Notifier.
func (a *PipelineNotifier) Notify(ctx context.Context, userID uuid.UUID, kind pipelinesvc.NotificationKind, payload pipelinesvc.DealNotification) {
	a.dispatcher.NotifyDeal(ctx, userID, string(kind), notification.Deal{
		OpportunityID: payload.OpportunityID,
		AccountID:     payload.AccountID,
		Title:         payload.Title,
		AccountName:   payload.AccountName,
		Value:         payload.Value,
		Stage:         string(payload.Stage),
		Outcome:       string(payload.Outcome),
	})
}

var _ pipelinesvc.Notifier = (*PipelineNotifier)(nil)
