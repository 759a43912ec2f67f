package repository

import (
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// translateUniqueViolation maps a unique constraint violation to a typed
// conflict error so handlers render 409 instead of 500. Other errors pass
// through unchanged.
func translateUniqueViolation(err error, message string) error {
	if isUniqueViolation(err) {
		return appErrors.Clone(appErrors.ErrConflict, message)
	}
	return err
}
