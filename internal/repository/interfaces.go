package repository

import (
	"context"

	"github.com/jwalitptl/patient-api/internal/model"
)

type (
	// PatientStore is the persistence boundary for patient records.
	PatientStore interface {
		// ListPatients returns every patient with its owned records, embedded
		// documents already decoded.
		ListPatients(ctx context.Context) ([]*model.PatientRecord, error)
		// WithTx runs fn as one unit of work. A non-nil error from fn rolls
		// back everything fn did.
		WithTx(ctx context.Context, fn func(PatientTx) error) error
		Ping(ctx context.Context) error
	}

	// PatientTx exposes per-entity operations bound to a single unit of work.
	PatientTx interface {
		UpdatePatient(ctx context.Context, patient *model.Patient) error
		GetPatient(ctx context.Context, id string) (*model.Patient, error)
		UpsertDiagnosis(ctx context.Context, diagnosis *model.Diagnosis) error

		DeleteTreatments(ctx context.Context, patientID string) error
		CreateTreatments(ctx context.Context, treatments []model.Treatment) error

		DeleteAppointments(ctx context.Context, patientID string) error
		CreateAppointments(ctx context.Context, appointments []model.Appointment) error

		DeleteImagingDiagnostics(ctx context.Context, patientID string) error
		CreateImagingDiagnostics(ctx context.Context, diagnostics []model.ImagingDiagnostic) error

		DeleteAIAnalysisHistory(ctx context.Context, patientID string) error
		CreateAIAnalysisHistory(ctx context.Context, items []model.AIAnalysisHistoryItem) error
	}
)
