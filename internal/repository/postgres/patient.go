package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/patient-api/internal/model"
	"github.com/jwalitptl/patient-api/internal/repository"
	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

const (
	selectPatientsQuery = `
		SELECT id, name, dob, address, phone, treating_doctor_id, created_at, updated_at
		FROM patients
		ORDER BY id`

	selectPatientQuery = `
		SELECT id, name, dob, address, phone, treating_doctor_id, created_at, updated_at
		FROM patients
		WHERE id = $1`

	updatePatientQuery = `
		UPDATE patients
		SET name = $1, dob = $2, address = $3, phone = $4, treating_doctor_id = $5, updated_at = $6
		WHERE id = $7`

	selectDiagnosesQuery = `
		SELECT id, patient_id, main_disease, icd_code, stage, notes, diagnosed_at
		FROM diagnoses
		ORDER BY patient_id`

	upsertDiagnosisQuery = `
		INSERT INTO diagnoses (id, patient_id, main_disease, icd_code, stage, notes, diagnosed_at)
		VALUES (:id, :patient_id, :main_disease, :icd_code, :stage, :notes, :diagnosed_at)
		ON CONFLICT (patient_id) DO UPDATE SET
			main_disease = EXCLUDED.main_disease,
			icd_code = EXCLUDED.icd_code,
			stage = EXCLUDED.stage,
			notes = EXCLUDED.notes,
			diagnosed_at = EXCLUDED.diagnosed_at`

	selectTreatmentsQuery = `
		SELECT id, patient_id, "date", medication, dosage, notes, lab_test_json, position
		FROM treatments
		ORDER BY patient_id, position`

	insertTreatmentsQuery = `
		INSERT INTO treatments (id, patient_id, "date", medication, dosage, notes, lab_test_json, position)
		VALUES (:id, :patient_id, :date, :medication, :dosage, :notes, :lab_test_json, :position)`

	selectAppointmentsQuery = `
		SELECT id, patient_id, "date", "time", reason, status, doctor_id, position
		FROM appointments
		ORDER BY patient_id, position`

	insertAppointmentsQuery = `
		INSERT INTO appointments (id, patient_id, "date", "time", reason, status, doctor_id, position)
		VALUES (:id, :patient_id, :date, :time, :reason, :status, :doctor_id, :position)`

	selectImagingDiagnosticsQuery = `
		SELECT id, patient_id, "date", "type", body_part, findings, image_url, position
		FROM imaging_diagnostics
		ORDER BY patient_id, position`

	insertImagingDiagnosticsQuery = `
		INSERT INTO imaging_diagnostics (id, patient_id, "date", "type", body_part, findings, image_url, position)
		VALUES (:id, :patient_id, :date, :type, :body_part, :findings, :image_url, :position)`

	selectAIAnalysisHistoryQuery = `
		SELECT id, patient_id, analyzed_at, summary, recommendation, confidence,
			current_protocols_json, supporting_guidelines_json, position
		FROM ai_analysis_history
		ORDER BY patient_id, position`

	insertAIAnalysisHistoryQuery = `
		INSERT INTO ai_analysis_history (id, patient_id, analyzed_at, summary, recommendation, confidence,
			current_protocols_json, supporting_guidelines_json, position)
		VALUES (:id, :patient_id, :analyzed_at, :summary, :recommendation, :confidence,
			:current_protocols_json, :supporting_guidelines_json, :position)`
)

// Owned collection tables. Only these names are ever interpolated into SQL.
const (
	tableTreatments         = "treatments"
	tableAppointments       = "appointments"
	tableImagingDiagnostics = "imaging_diagnostics"
	tableAIAnalysisHistory  = "ai_analysis_history"
)

type PatientStore struct {
	BaseRepository
}

var _ repository.PatientStore = (*PatientStore)(nil)

func NewPatientStore(db *sqlx.DB) *PatientStore {
	return &PatientStore{NewBaseRepository(db)}
}

func (s *PatientStore) Ping(ctx context.Context) error {
	if err := s.GetDB().PingContext(ctx); err != nil {
		return wrapErr("ping database", err)
	}
	return nil
}

// ListPatients loads every patient with its diagnosis and collections from a
// single read-only snapshot.
func (s *PatientStore) ListPatients(ctx context.Context) ([]*model.PatientRecord, error) {
	var records []*model.PatientRecord
	err := s.WithReadTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		records, err = listPatientRecords(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *PatientStore) WithTx(ctx context.Context, fn func(repository.PatientTx) error) error {
	return s.BaseRepository.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&patientTx{tx: tx})
	})
}

func listPatientRecords(ctx context.Context, q sqlx.QueryerContext) ([]*model.PatientRecord, error) {
	var patients []model.Patient
	if err := sqlx.SelectContext(ctx, q, &patients, selectPatientsQuery); err != nil {
		return nil, wrapErr("list patients", err)
	}

	records := make([]*model.PatientRecord, 0, len(patients))
	byID := make(map[string]*model.PatientRecord, len(patients))
	for _, p := range patients {
		rec := model.NewPatientRecord(p)
		records = append(records, rec)
		byID[p.ID] = rec
	}

	var diagnoses []model.Diagnosis
	if err := sqlx.SelectContext(ctx, q, &diagnoses, selectDiagnosesQuery); err != nil {
		return nil, wrapErr("list diagnoses", err)
	}
	for i := range diagnoses {
		if rec, ok := byID[diagnoses[i].PatientID]; ok {
			rec.Diagnosis = &diagnoses[i]
		}
	}

	var treatments []treatmentRow
	if err := sqlx.SelectContext(ctx, q, &treatments, selectTreatmentsQuery); err != nil {
		return nil, wrapErr("list treatments", err)
	}
	for _, row := range treatments {
		rec, ok := byID[row.PatientID]
		if !ok {
			continue
		}
		t, err := row.decode()
		if err != nil {
			return nil, err
		}
		rec.Treatments = append(rec.Treatments, t)
	}

	var appointments []appointmentRow
	if err := sqlx.SelectContext(ctx, q, &appointments, selectAppointmentsQuery); err != nil {
		return nil, wrapErr("list appointments", err)
	}
	for _, row := range appointments {
		if rec, ok := byID[row.PatientID]; ok {
			rec.Appointments = append(rec.Appointments, row.Appointment)
		}
	}

	var imaging []imagingDiagnosticRow
	if err := sqlx.SelectContext(ctx, q, &imaging, selectImagingDiagnosticsQuery); err != nil {
		return nil, wrapErr("list imaging diagnostics", err)
	}
	for _, row := range imaging {
		if rec, ok := byID[row.PatientID]; ok {
			rec.ImagingDiagnostics = append(rec.ImagingDiagnostics, row.ImagingDiagnostic)
		}
	}

	var analyses []aiAnalysisRow
	if err := sqlx.SelectContext(ctx, q, &analyses, selectAIAnalysisHistoryQuery); err != nil {
		return nil, wrapErr("list ai analysis history", err)
	}
	for _, row := range analyses {
		rec, ok := byID[row.PatientID]
		if !ok {
			continue
		}
		item, err := row.decode()
		if err != nil {
			return nil, err
		}
		rec.AIAnalysisHistory = append(rec.AIAnalysisHistory, item)
	}

	return records, nil
}

// patientTx runs the write steps of an update inside one sqlx transaction.
type patientTx struct {
	tx *sqlx.Tx
}

func (t *patientTx) UpdatePatient(ctx context.Context, p *model.Patient) error {
	res, err := t.tx.ExecContext(ctx, updatePatientQuery,
		p.Name,
		p.Dob,
		p.Address,
		p.Phone,
		p.TreatingDoctorID,
		time.Now().UTC(),
		p.ID,
	)
	if err != nil {
		return wrapErr("update patient", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return wrapErr("update patient", err)
	}
	if rows == 0 {
		return apperrors.NotFound(fmt.Sprintf("patient %s", p.ID), nil)
	}
	return nil
}

func (t *patientTx) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	var patient model.Patient
	if err := t.tx.GetContext(ctx, &patient, selectPatientQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("patient %s", id), err)
		}
		return nil, wrapErr("get patient", err)
	}
	return &patient, nil
}

func (t *patientTx) UpsertDiagnosis(ctx context.Context, d *model.Diagnosis) error {
	if _, err := t.tx.NamedExecContext(ctx, upsertDiagnosisQuery, d); err != nil {
		return wrapErr("upsert diagnosis", err)
	}
	return nil
}

func (t *patientTx) DeleteTreatments(ctx context.Context, patientID string) error {
	return t.deleteOwned(ctx, tableTreatments, patientID)
}

func (t *patientTx) CreateTreatments(ctx context.Context, treatments []model.Treatment) error {
	if len(treatments) == 0 {
		return nil
	}
	rows := make([]treatmentRow, 0, len(treatments))
	for i, tr := range treatments {
		row, err := newTreatmentRow(tr, i)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return insertRows(ctx, t.tx, "insert treatments", insertTreatmentsQuery, rows)
}

func (t *patientTx) DeleteAppointments(ctx context.Context, patientID string) error {
	return t.deleteOwned(ctx, tableAppointments, patientID)
}

func (t *patientTx) CreateAppointments(ctx context.Context, appointments []model.Appointment) error {
	if len(appointments) == 0 {
		return nil
	}
	rows := make([]appointmentRow, 0, len(appointments))
	for i, a := range appointments {
		rows = append(rows, appointmentRow{Appointment: a, Position: i})
	}
	return insertRows(ctx, t.tx, "insert appointments", insertAppointmentsQuery, rows)
}

func (t *patientTx) DeleteImagingDiagnostics(ctx context.Context, patientID string) error {
	return t.deleteOwned(ctx, tableImagingDiagnostics, patientID)
}

func (t *patientTx) CreateImagingDiagnostics(ctx context.Context, diagnostics []model.ImagingDiagnostic) error {
	if len(diagnostics) == 0 {
		return nil
	}
	rows := make([]imagingDiagnosticRow, 0, len(diagnostics))
	for i, d := range diagnostics {
		rows = append(rows, imagingDiagnosticRow{ImagingDiagnostic: d, Position: i})
	}
	return insertRows(ctx, t.tx, "insert imaging diagnostics", insertImagingDiagnosticsQuery, rows)
}

func (t *patientTx) DeleteAIAnalysisHistory(ctx context.Context, patientID string) error {
	return t.deleteOwned(ctx, tableAIAnalysisHistory, patientID)
}

func (t *patientTx) CreateAIAnalysisHistory(ctx context.Context, items []model.AIAnalysisHistoryItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]aiAnalysisRow, 0, len(items))
	for i, item := range items {
		row, err := newAIAnalysisRow(item, i)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return insertRows(ctx, t.tx, "insert ai analysis history", insertAIAnalysisHistoryQuery, rows)
}

func (t *patientTx) deleteOwned(ctx context.Context, table, patientID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE patient_id = $1`, table)
	if _, err := t.tx.ExecContext(ctx, query, patientID); err != nil {
		return wrapErr("delete "+table, err)
	}
	return nil
}

// insertBatchSize bounds rows per INSERT. PostgreSQL accepts at most 65535
// bind parameters per statement and the widest row here has 9 columns.
const insertBatchSize = 1000

// insertRows bulk inserts a non-empty slice, insertBatchSize rows per statement.
func insertRows[T any](ctx context.Context, tx *sqlx.Tx, op, query string, rows []T) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return wrapErr(op, err)
		}
	}
	return nil
}
