package repository

import (
	"context"

	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/platform/db"

	"github.com/google/uuid"
)

const accountColumns = `id, name, status, created_at, updated_at`

func (r *Repository) CreateAccount(ctx context.Context, p CreateAccountParams) (Account, error) {
	status := p.Status
	if status == "" {
		status = domain.AccountProspect
	}

	var a Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (name, status)
		VALUES ($1, $2)
		RETURNING `+accountColumns,
		p.Name, string(status),
	).Scan(&a.ID, &a.Name, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, db.Classify(err, opCreateAccount, msgAccountNotFound, "failed to create account")
	}
	return a, nil
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, db.Classify(err, opGetAccount, msgAccountNotFound, "failed to load account")
	}
	return a, nil
}

// UpdateAccountStatus writes status unconditionally and returns the row.
func (r *Repository) UpdateAccountStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns,
		id, string(status),
	).Scan(&a.ID, &a.Name, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, db.Classify(err, opUpdateAccountStatus, msgAccountNotFound, "failed to update account status")
	}
	return a, nil
}
