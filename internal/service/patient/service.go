package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/patient-api/internal/model"
	"github.com/jwalitptl/patient-api/internal/repository"
	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
	"github.com/jwalitptl/patient-api/pkg/messaging"
	"github.com/jwalitptl/patient-api/pkg/metrics"
)

// Collection names used for row counts in events and metrics.
const (
	CollectionDiagnosis          = "diagnosis"
	CollectionTreatments         = "treatments"
	CollectionAppointments       = "appointments"
	CollectionImagingDiagnostics = "imagingDiagnostics"
	CollectionAIAnalysisHistory  = "aiAnalysisHistory"
)

type PatientService interface {
	ListPatients(ctx context.Context) ([]*model.PatientRecord, error)
	UpdatePatient(ctx context.Context, id string, record *model.PatientRecord) (*model.Patient, error)
}

type Service struct {
	store     repository.PatientStore
	publisher messaging.Publisher
	metrics   *metrics.Metrics
}

var _ PatientService = (*Service)(nil)

// NewService wires the service to its store. publisher and m may be nil.
func NewService(store repository.PatientStore, publisher messaging.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		metrics:   m,
	}
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.PatientRecord, error) {
	start := time.Now()
	records, err := s.store.ListPatients(ctx)
	s.observe("list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return records, nil
}

// UpdatePatient replaces the stored state of patient id with record in one
// unit of work and returns the refreshed primary record. Collections that are
// absent in record end up empty; an absent diagnosis is left as it is.
func (s *Service) UpdatePatient(ctx context.Context, id string, record *model.PatientRecord) (*model.Patient, error) {
	if record == nil {
		record = &model.PatientRecord{}
	}
	plan := newUpdatePlan(id, record)

	start := time.Now()
	var updated *model.Patient
	err := s.store.WithTx(ctx, func(tx repository.PatientTx) error {
		if err := plan.apply(ctx, tx); err != nil {
			return err
		}
		var err error
		updated, err = tx.GetPatient(ctx, id)
		return err
	})
	s.observe("update", start, err)
	if err != nil {
		return nil, fmt.Errorf("update patient %s: %w", id, err)
	}

	counts := plan.rowCounts()
	s.recordRows(counts)
	zerolog.Ctx(ctx).Info().
		Str("patient_id", id).
		Interface("rows", counts).
		Msg("Patient record updated")

	s.publishUpdated(ctx, id, counts)
	return updated, nil
}

// updatePlan is the payload stamped with the owning patient id and with ids
// for new child rows.
type updatePlan struct {
	patient            model.Patient
	diagnosis          *model.Diagnosis
	treatments         []model.Treatment
	appointments       []model.Appointment
	imagingDiagnostics []model.ImagingDiagnostic
	aiAnalysisHistory  []model.AIAnalysisHistoryItem
}

func newUpdatePlan(id string, record *model.PatientRecord) *updatePlan {
	owned := record.OwnedBy(id)
	return &updatePlan{
		patient:            owned.Patient,
		diagnosis:          owned.Diagnosis,
		treatments:         owned.Treatments,
		appointments:       owned.Appointments,
		imagingDiagnostics: owned.ImagingDiagnostics,
		aiAnalysisHistory:  owned.AIAnalysisHistory,
	}
}

// apply runs the write steps in order. The first failure aborts the unit of work.
func (p *updatePlan) apply(ctx context.Context, tx repository.PatientTx) error {
	id := p.patient.ID

	if err := tx.UpdatePatient(ctx, &p.patient); err != nil {
		return err
	}

	if p.diagnosis != nil {
		if err := tx.UpsertDiagnosis(ctx, p.diagnosis); err != nil {
			return err
		}
	}

	if err := tx.DeleteTreatments(ctx, id); err != nil {
		return err
	}
	if err := tx.CreateTreatments(ctx, p.treatments); err != nil {
		return err
	}

	if err := tx.DeleteAppointments(ctx, id); err != nil {
		return err
	}
	if err := tx.CreateAppointments(ctx, p.appointments); err != nil {
		return err
	}

	if err := tx.DeleteImagingDiagnostics(ctx, id); err != nil {
		return err
	}
	if err := tx.CreateImagingDiagnostics(ctx, p.imagingDiagnostics); err != nil {
		return err
	}

	if err := tx.DeleteAIAnalysisHistory(ctx, id); err != nil {
		return err
	}
	return tx.CreateAIAnalysisHistory(ctx, p.aiAnalysisHistory)
}

func (p *updatePlan) rowCounts() map[string]int {
	diagnosis := 0
	if p.diagnosis != nil {
		diagnosis = 1
	}
	return map[string]int{
		CollectionDiagnosis:          diagnosis,
		CollectionTreatments:         len(p.treatments),
		CollectionAppointments:       len(p.appointments),
		CollectionImagingDiagnostics: len(p.imagingDiagnostics),
		CollectionAIAnalysisHistory:  len(p.aiAnalysisHistory),
	}
}

// publishUpdated runs after commit. A failure is logged and never returned.
func (s *Service) publishUpdated(ctx context.Context, id string, counts map[string]int) {
	if s.publisher == nil {
		return
	}

	event := model.PatientUpdatedEvent{
		PatientID:  id,
		RowCounts:  counts,
		OccurredAt: time.Now().UTC(),
	}
	status := "ok"
	if err := s.publisher.Publish(ctx, model.EventPatientUpdated, event); err != nil {
		status = "error"
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("patient_id", id).
			Msg("Failed to publish patient update event")
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(model.EventPatientUpdated, status).Inc()
	}
}

func (s *Service) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeCommitted
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	default:
		outcome = metrics.OutcomeRolledBack
	}
	s.metrics.UnitsOfWork.WithLabelValues(operation, outcome).Inc()
	s.metrics.UnitOfWorkLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (s *Service) recordRows(counts map[string]int) {
	if s.metrics == nil {
		return
	}
	for collection, n := range counts {
		s.metrics.RowsWritten.WithLabelValues(collection).Add(float64(n))
	}
}
