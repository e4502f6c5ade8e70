package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/patient-api/internal/model"
	"github.com/jwalitptl/patient-api/internal/repository"
	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

type patientTx struct {
	state state
	now   time.Time
}

func (tx *patientTx) UpdatePatient(_ context.Context, p *model.Patient) error {
	existing, ok := tx.state.patients[p.ID]
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("patient %s", p.ID), nil)
	}
	updated := *p
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = tx.now
	tx.state.patients[p.ID] = updated
	return nil
}

func (tx *patientTx) GetPatient(_ context.Context, id string) (*model.Patient, error) {
	p, ok := tx.state.patients[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("patient %s", id), nil)
	}
	return &p, nil
}

func (tx *patientTx) UpsertDiagnosis(_ context.Context, d *model.Diagnosis) error {
	if err := tx.requirePatient("upsert diagnosis", d.PatientID); err != nil {
		return err
	}
	row := *d
	if existing, ok := tx.state.diagnoses[d.PatientID]; ok {
		row.ID = existing.ID
	} else {
		if row.ID == "" {
			row.ID = uuid.New().String()
		}
		for _, other := range tx.state.diagnoses {
			if other.ID == row.ID {
				return duplicateID("upsert diagnosis", row.ID)
			}
		}
	}
	tx.state.diagnoses[d.PatientID] = row
	return nil
}

func (tx *patientTx) DeleteTreatments(_ context.Context, patientID string) error {
	delete(tx.state.treatments, patientID)
	return nil
}

func (tx *patientTx) CreateTreatments(_ context.Context, treatments []model.Treatment) error {
	for _, t := range treatments {
		if err := tx.requirePatient("insert treatments", t.PatientID); err != nil {
			return err
		}
		for _, rows := range tx.state.treatments {
			for _, row := range rows {
				if row.ID == t.ID {
					return duplicateID("insert treatments", t.ID)
				}
			}
		}
		labTest, err := repository.EncodeDocument(t.LabTest)
		if err != nil {
			return fmt.Errorf("encode labTest of treatment %s: %w", t.ID, err)
		}
		t.LabTest = nil
		tx.state.treatments[t.PatientID] = append(tx.state.treatments[t.PatientID], storedTreatment{Treatment: t, labTest: labTest})
	}
	return nil
}

func (tx *patientTx) DeleteAppointments(_ context.Context, patientID string) error {
	delete(tx.state.appointments, patientID)
	return nil
}

func (tx *patientTx) CreateAppointments(_ context.Context, appointments []model.Appointment) error {
	for _, a := range appointments {
		if err := tx.requirePatient("insert appointments", a.PatientID); err != nil {
			return err
		}
		for _, rows := range tx.state.appointments {
			for _, row := range rows {
				if row.ID == a.ID {
					return duplicateID("insert appointments", a.ID)
				}
			}
		}
		tx.state.appointments[a.PatientID] = append(tx.state.appointments[a.PatientID], a)
	}
	return nil
}

func (tx *patientTx) DeleteImagingDiagnostics(_ context.Context, patientID string) error {
	delete(tx.state.imaging, patientID)
	return nil
}

func (tx *patientTx) CreateImagingDiagnostics(_ context.Context, diagnostics []model.ImagingDiagnostic) error {
	for _, d := range diagnostics {
		if err := tx.requirePatient("insert imaging diagnostics", d.PatientID); err != nil {
			return err
		}
		for _, rows := range tx.state.imaging {
			for _, row := range rows {
				if row.ID == d.ID {
					return duplicateID("insert imaging diagnostics", d.ID)
				}
			}
		}
		tx.state.imaging[d.PatientID] = append(tx.state.imaging[d.PatientID], d)
	}
	return nil
}

func (tx *patientTx) DeleteAIAnalysisHistory(_ context.Context, patientID string) error {
	delete(tx.state.analyses, patientID)
	return nil
}

func (tx *patientTx) CreateAIAnalysisHistory(_ context.Context, items []model.AIAnalysisHistoryItem) error {
	for _, item := range items {
		if err := tx.requirePatient("insert ai analysis history", item.PatientID); err != nil {
			return err
		}
		for _, rows := range tx.state.analyses {
			for _, row := range rows {
				if row.ID == item.ID {
					return duplicateID("insert ai analysis history", item.ID)
				}
			}
		}
		protocols, err := repository.EncodeDocument(item.CurrentProtocols)
		if err != nil {
			return fmt.Errorf("encode currentProtocols of ai analysis %s: %w", item.ID, err)
		}
		guidelines, err := repository.EncodeDocument(item.SupportingGuidelines)
		if err != nil {
			return fmt.Errorf("encode supportingGuidelines of ai analysis %s: %w", item.ID, err)
		}
		item.CurrentProtocols = nil
		item.SupportingGuidelines = nil
		tx.state.analyses[item.PatientID] = append(tx.state.analyses[item.PatientID], storedAnalysis{
			AIAnalysisHistoryItem: item,
			currentProtocols:      protocols,
			supportingGuidelines:  guidelines,
		})
	}
	return nil
}

// replaceOwned rewrites the diagnosis and every collection of rec. Used by Seed.
func (tx *patientTx) replaceOwned(ctx context.Context, rec *model.PatientRecord) error {
	owned := rec.OwnedBy(rec.ID)
	if owned.Diagnosis != nil {
		if err := tx.UpsertDiagnosis(ctx, owned.Diagnosis); err != nil {
			return err
		}
	}

	tx.DeleteTreatments(ctx, owned.ID)
	tx.DeleteAppointments(ctx, owned.ID)
	tx.DeleteImagingDiagnostics(ctx, owned.ID)
	tx.DeleteAIAnalysisHistory(ctx, owned.ID)

	if err := tx.CreateTreatments(ctx, owned.Treatments); err != nil {
		return err
	}
	if err := tx.CreateAppointments(ctx, owned.Appointments); err != nil {
		return err
	}
	if err := tx.CreateImagingDiagnostics(ctx, owned.ImagingDiagnostics); err != nil {
		return err
	}
	return tx.CreateAIAnalysisHistory(ctx, owned.AIAnalysisHistory)
}

func (tx *patientTx) requirePatient(op, patientID string) error {
	if _, ok := tx.state.patients[patientID]; !ok {
		return apperrors.Persistence(fmt.Sprintf("%s (foreign_key_violation on patient %s)", op, patientID), nil)
	}
	return nil
}

func duplicateID(op, id string) error {
	return apperrors.Persistence(fmt.Sprintf("%s (unique_violation on id %s)", op, id), nil)
}
