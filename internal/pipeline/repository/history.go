package repository

import (
	"context"
	"time"

	"crm_pipeline_backend/platform/db"

	"github.com/google/uuid"
)

func (r *Repository) AppendStageHistory(ctx context.Context, p AppendHistoryParams) error {
	changedAt := p.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now()
	}

	var fromStage *string
	if p.FromStage != nil {
		s := string(*p.FromStage)
		fromStage = &s
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO opportunity_stage_history
			(opportunity_id, from_stage, to_stage, probability, source, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.OpportunityID, fromStage, string(p.ToStage), p.Probability, p.Source, p.ChangedBy, changedAt)
	if err != nil {
		return db.Classify(err, opAppendHistory, msgOpportunityNotFound, "failed to record stage history")
	}
	return nil
}

// ListStageHistory returns the history of one opportunity, newest first.
func (r *Repository) ListStageHistory(ctx context.Context, opportunityID uuid.UUID) ([]StageHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, opportunity_id, from_stage, to_stage, probability, source, changed_by, changed_at
		FROM opportunity_stage_history
		WHERE opportunity_id = $1
		ORDER BY changed_at DESC, id DESC
	`, opportunityID)
	if err != nil {
		return nil, db.Classify(err, opListHistory, msgOpportunityNotFound, "failed to list stage history")
	}
	defer rows.Close()

	items := make([]StageHistoryEntry, 0)
	for rows.Next() {
		var e StageHistoryEntry
		if scanErr := rows.Scan(&e.ID, &e.OpportunityID, &e.FromStage, &e.ToStage, &e.Probability, &e.Source, &e.ChangedBy, &e.ChangedAt); scanErr != nil {
			return nil, db.Classify(scanErr, opListHistory, msgOpportunityNotFound, "failed to read stage history")
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err, opListHistory, msgOpportunityNotFound, "failed to read stage history")
	}

	return items, nil
}
