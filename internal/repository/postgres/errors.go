package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

// wrapErr classifies a driver error as a persistence failure. PostgreSQL
// errors contribute their condition name and constraint to the message.
func wrapErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		detail := pqErr.Code.Name()
		if pqErr.Constraint != "" {
			detail += " on " + pqErr.Constraint
		}
		return apperrors.Persistence(fmt.Sprintf("%s (%s)", op, detail), err)
	}
	return apperrors.Persistence(op, err)
}
