package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

func TestWrapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "plain driver error",
			err:  errors.New("connection refused"),
			want: "insert treatments: connection refused",
		},
		{
			name: "postgres error with constraint",
			err:  &pq.Error{Code: "23503", Message: "violates fk", Constraint: "treatments_patient_id_fkey"},
			want: "insert treatments (foreign_key_violation on treatments_patient_id_fkey)",
		},
		{
			name: "wrapped postgres error without constraint",
			err:  fmt.Errorf("exec: %w", &pq.Error{Code: "40001", Message: "serialize"}),
			want: "insert treatments (serialization_failure)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapErr("insert treatments", tt.err)
			assert.Equal(t, apperrors.ErrPersistence, apperrors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
