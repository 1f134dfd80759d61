package db

import (
	"context"
	"errors"
	"net"
	"strings"

	"crm_pipeline_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE values that mean the write lost against another
// transaction or a constraint.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
	sqlStateIntegrityClass       = "23"
	sqlStateConnectionClass      = "08"
)

// Classify converts a pgx error into an apperr.Error carrying op.
// notFoundMsg is used for pgx.ErrNoRows; failMsg is the user-facing message
// for every other failure. A nil err returns nil.
func Classify(err error, op, notFoundMsg, failMsg string) error {
	if err == nil {
		return nil
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(notFoundMsg).WithOp(op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == sqlStateSerializationFailure, pgErr.Code == sqlStateDeadlockDetected:
			return apperr.WriteConflict(failMsg+": concurrent update", err).WithOp(op)
		case pgErr.Code == sqlStateUniqueViolation:
			return apperr.Conflict(failMsg+": already exists", err).WithOp(op)
		case strings.HasPrefix(pgErr.Code, sqlStateIntegrityClass):
			return apperr.WriteConflict(failMsg+": constraint violation", err).WithOp(op)
		case strings.HasPrefix(pgErr.Code, sqlStateConnectionClass):
			return apperr.Transport(failMsg+": database unavailable", err).WithOp(op)
		}
		return apperr.Wrap(apperr.KindInternal, failMsg, err).WithOp(op)
	}

	if isTransportError(err) {
		return apperr.Transport(failMsg+": database unavailable", err).WithOp(op)
	}

	return apperr.Wrap(apperr.KindInternal, failMsg, err).WithOp(op)
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}
