package repository

import (
	"context"
	"fmt"
	"strings"

	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const opportunitySelect = `
	SELECT o.id, o.account_id, a.name, o.title, o.stage, o.probability, o.value,
	       o.owner_id, o.created_at, o.updated_at
	FROM opportunities o
	JOIN accounts a ON a.id = o.account_id`

// returningJoined wraps a data-modifying statement that RETURNs opportunity
// rows so the result carries the account name in the same round trip.
func returningJoined(statement string) string {
	return `
	WITH changed AS (` + statement + `
		RETURNING id, account_id, title, stage, probability, value, owner_id, created_at, updated_at
	)
	SELECT c.id, c.account_id, a.name, c.title, c.stage, c.probability, c.value,
	       c.owner_id, c.created_at, c.updated_at
	FROM changed c
	JOIN accounts a ON a.id = c.account_id`
}

func scanOpportunity(row pgx.Row) (Opportunity, error) {
	var o Opportunity
	err := row.Scan(&o.ID, &o.AccountID, &o.AccountName, &o.Title, &o.Stage, &o.Probability, &o.Value,
		&o.OwnerID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOpportunity inserts a new opportunity at the first pipeline stage.
func (r *Repository) CreateOpportunity(ctx context.Context, p CreateOpportunityParams) (Opportunity, error) {
	probability, _ := domain.ProbabilityFor(domain.StageLead)

	o, err := scanOpportunity(r.pool.QueryRow(ctx, returningJoined(`
		INSERT INTO opportunities (account_id, title, stage, probability, value, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)`),
		p.AccountID, p.Title, string(domain.StageLead), probability, p.Value, p.OwnerID,
	))
	if err != nil {
		return Opportunity{}, db.Classify(err, opCreateOpportunity, msgAccountNotFound, "failed to create opportunity")
	}
	return o, nil
}

func (r *Repository) GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error) {
	o, err := scanOpportunity(r.pool.QueryRow(ctx, opportunitySelect+`
		WHERE o.id = $1 AND o.deleted_at IS NULL`, id))
	if err != nil {
		return Opportunity{}, db.Classify(err, opGetOpportunity, msgOpportunityNotFound, "failed to load opportunity")
	}
	return o, nil
}

// UpdateOpportunityStage writes stage and probability in one statement and
// returns the updated row. Writing the current values again still bumps
// updated_at.
func (r *Repository) UpdateOpportunityStage(ctx context.Context, id uuid.UUID, stage domain.Stage, probability int) (Opportunity, error) {
	o, err := scanOpportunity(r.pool.QueryRow(ctx, returningJoined(`
		UPDATE opportunities
		SET stage = $2, probability = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`),
		id, string(stage), probability,
	))
	if err != nil {
		return Opportunity{}, db.Classify(err, opUpdateStage, msgOpportunityNotFound, "failed to update opportunity stage")
	}
	return o, nil
}

// UpdateOpportunityProbability overrides probability without touching stage.
func (r *Repository) UpdateOpportunityProbability(ctx context.Context, id uuid.UUID, probability int) (Opportunity, error) {
	o, err := scanOpportunity(r.pool.QueryRow(ctx, returningJoined(`
		UPDATE opportunities
		SET probability = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`),
		id, probability,
	))
	if err != nil {
		return Opportunity{}, db.Classify(err, opUpdateProbability, msgOpportunityNotFound, "failed to update opportunity probability")
	}
	return o, nil
}

// ListOpportunities returns every non-deleted opportunity matching filter,
// oldest first.
func (r *Repository) ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]Opportunity, error) {
	conditions := []string{"o.deleted_at IS NULL"}
	args := make([]interface{}, 0, 2)

	if filter.ExcludeLost {
		args = append(args, string(domain.StageLost))
		conditions = append(conditions, fmt.Sprintf("o.stage <> $%d", len(args)))
	}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		conditions = append(conditions, fmt.Sprintf("o.account_id = $%d", len(args)))
	}

	query := opportunitySelect + `
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY o.created_at ASC, o.id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err, opListOpportunities, msgOpportunityNotFound, "failed to list opportunities")
	}
	defer rows.Close()

	items := make([]Opportunity, 0)
	for rows.Next() {
		o, scanErr := scanOpportunity(rows)
		if scanErr != nil {
			return nil, db.Classify(scanErr, opListOpportunities, msgOpportunityNotFound, "failed to read opportunities")
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err, opListOpportunities, msgOpportunityNotFound, "failed to read opportunities")
	}

	return items, nil
}
