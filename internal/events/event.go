// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_pipeline_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Invalidation topics. Read-side caches key their entries by these names.
const (
	TopicOpportunities        = "opportunities"
	TopicOpportunitiesByStage = "opportunities-by-stage"
	TopicPipelineStats        = "pipeline-stats"
	TopicAccounts             = "accounts"
)

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// TopicsInvalidated is published after a write so that read-side caches drop
// the named topics. Delivery is at-least-once; handlers must be idempotent.
type TopicsInvalidated struct {
	BaseEvent
	Topics []string `json:"topics"`
}

func (e TopicsInvalidated) EventName() string { return "pipeline.cache.invalidated" }

// OpportunityStageChanged is published after every successful stage write,
// including re-writes of the current stage. FromStage is empty when the
// writer did not read the previous stage.
type OpportunityStageChanged struct {
	BaseEvent
	OpportunityID uuid.UUID  `json:"opportunityId"`
	AccountID     uuid.UUID  `json:"accountId"`
	OwnerID       uuid.UUID  `json:"ownerId"`
	FromStage     string     `json:"fromStage,omitempty"`
	ToStage       string     `json:"toStage"`
	Probability   int        `json:"probability"`
	Source        string     `json:"source"`
	ActorID       *uuid.UUID `json:"actorId,omitempty"`
}

func (e OpportunityStageChanged) EventName() string { return "pipeline.opportunity.stage_changed" }

// AccountConverted is published when a conversion flips an account to customer.
type AccountConverted struct {
	BaseEvent
	AccountID     uuid.UUID `json:"accountId"`
	AccountName   string    `json:"accountName"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	PreviousState string    `json:"previousStatus"`
}

func (e AccountConverted) EventName() string { return "pipeline.account.converted" }
