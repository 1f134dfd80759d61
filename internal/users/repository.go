// Package users reads the user directory used to address notifications.
package users

import (
	"context"

	"crm_pipeline_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opContact = "users.repository.contact"

// Contact is how a user is addressed in emails.
type Contact struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Contact returns the email address and display name of a user.
func (r *Repository) Contact(ctx context.Context, id uuid.UUID) (Contact, error) {
	c := Contact{ID: id}
	err := r.pool.QueryRow(ctx, `
		SELECT email, display_name FROM users WHERE id = $1
	`, id).Scan(&c.Email, &c.DisplayName)
	if err != nil {
		return Contact{}, db.Classify(err, opContact, "user not found", "failed to load user")
	}
	return c, nil
}
