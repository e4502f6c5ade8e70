// Package memory is an in-process PatientStore. Units of work run against a
// cloned state that replaces the live state only when they succeed.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/patient-api/internal/model"
	"github.com/jwalitptl/patient-api/internal/repository"
	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

// Store keeps opaque documents in their encoded text form, as the database does.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
}

var _ repository.PatientStore = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFn = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type storedTreatment struct {
	model.Treatment
	labTest string
}

type storedAnalysis struct {
	model.AIAnalysisHistoryItem
	currentProtocols     string
	supportingGuidelines string
}

// state holds every table. Child slices are keyed by patient id and kept in
// insertion order.
type state struct {
	patients     map[string]model.Patient
	diagnoses    map[string]model.Diagnosis
	treatments   map[string][]storedTreatment
	appointments map[string][]model.Appointment
	imaging      map[string][]model.ImagingDiagnostic
	analyses     map[string][]storedAnalysis
}

func newState() state {
	return state{
		patients:     make(map[string]model.Patient),
		diagnoses:    make(map[string]model.Diagnosis),
		treatments:   make(map[string][]storedTreatment),
		appointments: make(map[string][]model.Appointment),
		imaging:      make(map[string][]model.ImagingDiagnostic),
		analyses:     make(map[string][]storedAnalysis),
	}
}

func (s state) clone() state {
	out := newState()
	for k, v := range s.patients {
		out.patients[k] = v
	}
	for k, v := range s.diagnoses {
		out.diagnoses[k] = v
	}
	for k, v := range s.treatments {
		out.treatments[k] = append([]storedTreatment(nil), v...)
	}
	for k, v := range s.appointments {
		out.appointments[k] = append([]model.Appointment(nil), v...)
	}
	for k, v := range s.imaging {
		out.imaging[k] = append([]model.ImagingDiagnostic(nil), v...)
	}
	for k, v := range s.analyses {
		out.analyses[k] = append([]storedAnalysis(nil), v...)
	}
	return out
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// WithTx executes fn within a transactional copy of the store state.
func (s *Store) WithTx(ctx context.Context, fn func(repository.PatientTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &patientTx{state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Persistence("commit transaction", err)
	}

	s.state = tx.state
	return nil
}

func (s *Store) ListPatients(ctx context.Context) ([]*model.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Persistence("list patients", err)
	}

	ids := make([]string, 0, len(s.state.patients))
	for id := range s.state.patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]*model.PatientRecord, 0, len(ids))
	for _, id := range ids {
		rec := model.NewPatientRecord(s.state.patients[id])
		if d, ok := s.state.diagnoses[id]; ok {
			d := d
			rec.Diagnosis = &d
		}
		for _, st := range s.state.treatments[id] {
			t := st.Treatment
			labTest, err := repository.DecodeDocument("treatments.labTest", st.labTest)
			if err != nil {
				return nil, err
			}
			t.LabTest = labTest
			rec.Treatments = append(rec.Treatments, t)
		}
		rec.Appointments = append(rec.Appointments, s.state.appointments[id]...)
		rec.ImagingDiagnostics = append(rec.ImagingDiagnostics, s.state.imaging[id]...)
		for _, sa := range s.state.analyses[id] {
			item := sa.AIAnalysisHistoryItem
			protocols, err := repository.DecodeDocument("aiAnalysisHistory.currentProtocols", sa.currentProtocols)
			if err != nil {
				return nil, err
			}
			guidelines, err := repository.DecodeDocument("aiAnalysisHistory.supportingGuidelines", sa.supportingGuidelines)
			if err != nil {
				return nil, err
			}
			item.CurrentProtocols = protocols
			item.SupportingGuidelines = guidelines
			rec.AIAnalysisHistory = append(rec.AIAnalysisHistory, item)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Seed inserts patients, or replaces them when their id already exists,
// together with everything they own.
func (s *Store) Seed(ctx context.Context, records []*model.PatientRecord) error {
	return s.WithTx(ctx, func(ptx repository.PatientTx) error {
		tx := ptx.(*patientTx)
		for _, rec := range records {
			if rec == nil || rec.ID == "" {
				return apperrors.BadRequest("seed record without id", nil)
			}
			p := rec.Patient
			if existing, ok := tx.state.patients[p.ID]; ok {
				p.CreatedAt = existing.CreatedAt
			} else {
				p.CreatedAt = tx.now
			}
			p.UpdatedAt = tx.now
			tx.state.patients[p.ID] = p

			if err := tx.replaceOwned(ctx, rec); err != nil {
				return fmt.Errorf("seed patient %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// LoadSeedFile seeds the store from a JSON array of patient records.
func (s *Store) LoadSeedFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	var records []*model.PatientRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if err := s.Seed(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
