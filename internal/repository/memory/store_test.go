package memory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-api/internal/model"
	"github.com/jwalitptl/patient-api/internal/repository"
	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Seed(context.Background(), []*model.PatientRecord{
		{Patient: model.Patient{ID: "b", Name: "Bob"}},
		{
			Patient:    model.Patient{ID: "a", Name: "Alice"},
			Diagnosis:  &model.Diagnosis{ID: "d1", MainDisease: "Asthma"},
			Treatments: []model.Treatment{{ID: "t1", Medication: "Salbutamol", LabTest: json.RawMessage(`{"fev1": 2.9}`)}},
		},
	}))
	return s
}

func TestStore_ListPatients(t *testing.T) {
	s := seededStore(t)

	records, err := s.ListPatients(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)

	alice := records[0]
	require.NotNil(t, alice.Diagnosis)
	assert.Equal(t, "a", alice.Diagnosis.PatientID)
	require.Len(t, alice.Treatments, 1)
	assert.Equal(t, "a", alice.Treatments[0].PatientID)
	assert.JSONEq(t, `{"fev1":2.9}`, string(alice.Treatments[0].LabTest))

	bob := records[1]
	assert.Nil(t, bob.Diagnosis)
	assert.NotNil(t, bob.Treatments)
	assert.Empty(t, bob.Treatments)
}

func TestStore_ListPatients_Empty(t *testing.T) {
	records, err := NewStore().ListPatients(context.Background())
	require.NoError(t, err)
	body, err := json.Marshal(records)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.PatientTx) error {
		require.NoError(t, tx.DeleteTreatments(ctx, "a"))
		require.NoError(t, tx.CreateAppointments(ctx, []model.Appointment{{ID: "x", PatientID: "a"}}))
		return tx.CreateAppointments(ctx, []model.Appointment{{ID: "x", PatientID: "a"}})
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrPersistence, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "unique_violation")

	records, err := s.ListPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, records[0].Treatments, 1)
	assert.Empty(t, records[0].Appointments)
}

func TestStore_WithTx_RollsBackOnPanic(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx repository.PatientTx) error {
			_ = tx.DeleteTreatments(ctx, "a")
			panic("boom")
		})
	})

	records, err := s.ListPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, records[0].Treatments, 1)
}

func TestStore_UpdatePatient(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	clock := created
	s := NewStore(WithClock(func() time.Time { return clock }))
	ctx := context.Background()
	require.NoError(t, s.Seed(ctx, []*model.PatientRecord{{Patient: model.Patient{ID: "p1", Name: "Old"}}}))

	clock = later
	var got *model.Patient
	err := s.WithTx(ctx, func(tx repository.PatientTx) error {
		if err := tx.UpdatePatient(ctx, &model.Patient{ID: "p1", Name: "New"}); err != nil {
			return err
		}
		var err error
		got, err = tx.GetPatient(ctx, "p1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, later, got.UpdatedAt)
}

func TestStore_UpdatePatient_NotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.PatientTx) error {
		return tx.UpdatePatient(ctx, &model.Patient{ID: "nobody"})
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	err = s.WithTx(ctx, func(tx repository.PatientTx) error {
		_, err := tx.GetPatient(ctx, "nobody")
		return err
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStore_UpsertDiagnosis_KeepsOneRow(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	for _, stage := range []string{"1", "2", "3"} {
		stage := stage
		require.NoError(t, s.WithTx(ctx, func(tx repository.PatientTx) error {
			return tx.UpsertDiagnosis(ctx, &model.Diagnosis{ID: "ignored-" + stage, PatientID: "a", Stage: stage})
		}))
	}

	records, err := s.ListPatients(ctx)
	require.NoError(t, err)
	require.NotNil(t, records[0].Diagnosis)
	assert.Equal(t, "d1", records[0].Diagnosis.ID)
	assert.Equal(t, "3", records[0].Diagnosis.Stage)
}

func TestStore_CreateRejectsUnknownPatient(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.PatientTx) error {
		return tx.CreateImagingDiagnostics(ctx, []model.ImagingDiagnostic{{ID: "i1", PatientID: "ghost"}})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreign_key_violation")
}

func TestStore_WithTx_CanceledContext(t *testing.T) {
	s := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WithTx(ctx, func(tx repository.PatientTx) error {
		return tx.DeleteTreatments(ctx, "a")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	records, err := s.ListPatients(context.Background())
	require.NoError(t, err)
	assert.Len(t, records[0].Treatments, 1)
}

func TestStore_LoadSeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "123", "name": "Jane", "treatments": [{"medication": "Metformin", "labTest": {"glucose": 90}}],
		 "aiAnalysisHistory": [{"id": "ai1", "confidence": 0.7, "currentProtocols": ["diet"]}]}
	]`), 0o600))

	s := NewStore()
	n, err := s.LoadSeedFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := s.ListPatients(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Treatments, 1)
	assert.NotEmpty(t, records[0].Treatments[0].ID)
	assert.JSONEq(t, `{"glucose":90}`, string(records[0].Treatments[0].LabTest))
	require.Len(t, records[0].AIAnalysisHistory, 1)
	assert.JSONEq(t, `["diet"]`, string(records[0].AIAnalysisHistory[0].CurrentProtocols))
	assert.JSONEq(t, `null`, string(records[0].AIAnalysisHistory[0].SupportingGuidelines))
}

func TestStore_LoadSeedFile_Errors(t *testing.T) {
	s := NewStore()
	_, err := s.LoadSeedFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	_, err = s.LoadSeedFile(context.Background(), path)
	assert.Error(t, err)
}
