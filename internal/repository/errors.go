package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/tryout-backend/internal/apperror"
)

// Not-found errors returned by the repositories.
var (
	ErrUserNotFound    = apperror.NotFound("USER_NOT_FOUND", "user not found")
	ErrTestNotFound    = apperror.NotFound("TEST_NOT_FOUND", "test not found")
	ErrAttemptNotFound = apperror.NotFound("ATTEMPT_NOT_FOUND", "attempt not found")
	ErrUsernameTaken   = apperror.Guard("CONFLICT", "username already exists")
)

// classify maps driver errors onto the shared taxonomy. notFound is returned for pgx.ErrNoRows.
func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	if isTransient(err) {
		return apperror.Unavailable(err)
	}
	return fmt.Errorf("postgres: %w", err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08": // connection exception
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01", pgErr.Code == "53300":
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
