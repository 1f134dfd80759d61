package adapters

import (
	"context"

	"crm_pipeline_backend/internal/notification/sse"
	pipelinesvc "crm_pipeline_backend/internal/pipeline/service"

	"github.com/google/uuid"
)

const (
	feedbackLevelInfo  = "info"
	feedbackLevelError = "error"
)

// UserEventPublisher pushes an event to every live connection of one user.
type UserEventPublisher interface {
	Publish(userID uuid.UUID, event sse.Event)
}

// PipelineFeedback delivers pipeline acknowledgments and alerts to the acting
// user's live SSE connections. Users without a connection miss the message.
type PipelineFeedback struct {
	events UserEventPublisher
}

func NewPipelineFeedback(events UserEventPublisher) *PipelineFeedback {
	return &PipelineFeedback{events: events}
}

// Acknowledge implements pipelinesvc.Feedback.
func (a *PipelineFeedback) Acknowledge(_ context.Context, userID uuid.UUID, message string) {
	a.push(userID, feedbackLevelInfo, message)
}

// Alert implements pipelinesvc.Feedback.
func (a *PipelineFeedback) Alert(_ context.Context, userID uuid.UUID, message string) {
	a.push(userID, feedbackLevelError, message)
}

func (a *PipelineFeedback) push(userID uuid.UUID, level, message string) {
	a.events.Publish(userID, sse.Event{
		Type:    sse.EventPipelineFeedback,
		Message: message,
		Data:    map[string]string{"level": level},
	})
}

var _ pipelinesvc.Feedback = (*PipelineFeedback)(nil)
