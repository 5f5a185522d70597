package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrUniqueViolation is returned when an insert or update hits a unique index.
var ErrUniqueViolation = errors.New("unique constraint violation")

const pqUniqueViolation = "23505"

func translateUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrUniqueViolation
	}
	return err
}

const pqInvalidTextRepresentation = "22P02"

// translateMissing folds malformed key errors into sql.ErrNoRows. A path id
// that does not parse as a UUID cannot match any row.
func translateMissing(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation {
		return sql.ErrNoRows
	}
	return err
}
