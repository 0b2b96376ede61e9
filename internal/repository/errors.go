package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Clark-Hu/tourbook/internal/domain"
)

// Postgres SQLSTATE codes and constraint names the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
	codeCheckViolation      = "23514"

	constraintActiveSlot   = "uq_bookings_active_slot"
	constraintReviewTriple = "uq_reviews_user_tour_booking"
)

// translate maps driver errors onto the domain taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintActiveSlot:
				return fmt.Errorf("%s: %w", op, domain.ErrSlotConflict)
			case constraintReviewTriple:
				return fmt.Errorf("%s: %w", op, domain.ErrDuplicateReview)
			}
		case codeInvalidText, codeForeignKeyViolation:
			// malformed ids and dangling references both mean the target does not exist
			return fmt.Errorf("%s: %w: %s", op, domain.ErrNotFound, pgErr.Message)
		case codeCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrValidation, pgErr.ConstraintName)
		}
	}

	var connErr *pgconn.ConnectError
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || errors.As(err, &connErr) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
