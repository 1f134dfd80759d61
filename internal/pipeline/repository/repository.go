// Package repository is the Postgres record store for accounts,
// opportunities and their stage history.
package repository

import (
	"time"

	"crm_pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreateAccount       = "pipeline.repository.create_account"
	opGetAccount          = "pipeline.repository.get_account"
	opUpdateAccountStatus = "pipeline.repository.update_account_status"
	opCreateOpportunity   = "pipeline.repository.create_opportunity"
	opGetOpportunity      = "pipeline.repository.get_opportunity"
	opUpdateStage         = "pipeline.repository.update_stage"
	opUpdateProbability   = "pipeline.repository.update_probability"
	opListOpportunities   = "pipeline.repository.list_opportunities"
	opAppendHistory       = "pipeline.repository.append_history"
	opListHistory         = "pipeline.repository.list_history"

	msgAccountNotFound     = "account not found"
	msgOpportunityNotFound = "opportunity not found"
)

// Account is a company that owns opportunities.
type Account struct {
	ID        uuid.UUID            `json:"id"`
	Name      string               `json:"name"`
	Status    domain.AccountStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Opportunity is a deal moving through the pipeline. AccountName is joined
// from accounts on every read.
type Opportunity struct {
	ID          uuid.UUID    `json:"id"`
	AccountID   uuid.UUID    `json:"accountId"`
	AccountName string       `json:"accountName"`
	Title       string       `json:"title"`
	Stage       domain.Stage `json:"stage"`
	Probability int          `json:"probability"`
	Value       float64      `json:"value"`
	OwnerID     uuid.UUID    `json:"ownerId"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// StageHistoryEntry records one stage write.
type StageHistoryEntry struct {
	ID            uuid.UUID     `json:"id"`
	OpportunityID uuid.UUID     `json:"opportunityId"`
	FromStage     *domain.Stage `json:"fromStage,omitempty"`
	ToStage       domain.Stage  `json:"toStage"`
	Probability   int           `json:"probability"`
	Source        string        `json:"source"`
	ChangedBy     *uuid.UUID    `json:"changedBy,omitempty"`
	ChangedAt     time.Time     `json:"changedAt"`
}

// CreateAccountParams holds the fields for a new account.
type CreateAccountParams struct {
	Name   string
	Status domain.AccountStatus
}

// CreateOpportunityParams holds the fields for a new opportunity.
type CreateOpportunityParams struct {
	AccountID uuid.UUID
	Title     string
	Value     float64
	OwnerID   uuid.UUID
}

// OpportunityFilter narrows ListOpportunities.
type OpportunityFilter struct {
	ExcludeLost bool
	AccountID   *uuid.UUID
}

// AppendHistoryParams describes one stage history row.
type AppendHistoryParams struct {
	OpportunityID uuid.UUID
	FromStage     *domain.Stage
	ToStage       domain.Stage
	Probability   int
	Source        string
	ChangedBy     *uuid.UUID
	ChangedAt     time.Time
}

// Repository implements the record store over a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a repository bound to pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}
