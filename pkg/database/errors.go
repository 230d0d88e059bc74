package database

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsUniqueViolation reports whether err is a unique/primary key violation
// from either supported driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if stderrors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}

	return false
}

// MapConstraintError converts a driver constraint error to an AppError.
// Returns nil if err is not a recognised constraint violation.
func MapConstraintError(err error) *errors.AppError {
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return MapSQLiteError(err)
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr.Constraint)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr.Constraint))

	// Foreign key violation (23503)
	case "23503":
		return errors.Validation(map[string]string{
			referenceField(pqErr.Constraint): "referenced record does not exist",
		})

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// MapSQLiteError is the SQLite counterpart of MapPQError. SQLite reports the
// offending column or constraint only in the message text.
func MapSQLiteError(err error) *errors.AppError {
	var liteErr *sqlite.Error
	if !stderrors.As(err, &liteErr) {
		return nil
	}
	msg := liteErr.Error()

	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return errors.Conflict(formatConstraintMessage(msg))
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return errors.Validation(map[string]string{
			"reference": "referenced record does not exist",
		})
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return mapCheckConstraint(msg)
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return errors.Validation(map[string]string{
			"required field": "must not be empty",
		})
	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(constraint string) *errors.AppError {
	switch {
	case strings.Contains(constraint, "kind_valid"):
		return errors.Validation(map[string]string{
			"kind": "must be one of: import_bag, graded_bag",
		})

	case strings.Contains(constraint, "status_valid"), strings.Contains(constraint, "status_kind"):
		return errors.Validation(map[string]string{
			"status": "must be one of: unopened, opened (import bags only)",
		})

	case strings.Contains(constraint, "barcode_format"):
		return errors.Validation(map[string]string{
			"barcode": "must match <I|G><YYMMDD><NNNN>",
		})

	default:
		return errors.Wrap(errors.ErrBadRequest, "BAD_REQUEST", "data validation failed", http.StatusBadRequest).
			WithDetails(map[string]string{"constraint": constraint})
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(constraint string) string {
	switch {
	case strings.Contains(constraint, "barcode"):
		return "a unit with this barcode already exists"
	default:
		return "a record with these values already exists"
	}
}

func referenceField(constraint string) string {
	if strings.Contains(constraint, "import") {
		return "import_id"
	}
	return "reference"
}
