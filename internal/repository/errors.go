package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleState is returned when a conditional write finds the row no
	// longer in the expected state.
	ErrStaleState = errors.New("record not in expected state")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	invalidText         = "22P02"
)

// DuplicateError names the unique constraint a write collided with.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate record (%s)", e.Constraint)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// Unique constraint names shared by the Postgres schema and the in-memory store.
const (
	ConstraintProfileEmail       = "profiles_primary_email_key"
	ConstraintProfileNationalID  = "profiles_national_id_key"
	ConstraintCaseClientID       = "cases_client_generated_id_key"
	ConstraintTaskOnePending     = "tasks_one_pending_per_case"
	ConstraintProcessedMessageID = "processed_messages_internet_message_id_key"
	ConstraintStaffEmail         = "staff_members_email_key"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return &DuplicateError{Constraint: pgErr.ConstraintName}
		case foreignKeyViolation:
			// A referenced row such as the case's profile does not exist.
			return ErrNotFound
		case invalidText:
			// A malformed id such as a non-uuid path parameter matches no row.
			return ErrNotFound
		}
	}
	return err
}
