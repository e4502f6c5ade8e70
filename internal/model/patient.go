package model

import (
	"time"

	"github.com/google/uuid"
)

// Patient holds the scalar fields of a patient record.
type Patient struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Dob              string    `db:"dob" json:"dob"`
	Address          string    `db:"address" json:"address"`
	Phone            string    `db:"phone" json:"phone"`
	TreatingDoctorID string    `db:"treating_doctor_id" json:"treatingDoctorId"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// PatientRecord is a patient together with everything it owns. It is both the
// listing item and the update payload.
type PatientRecord struct {
	Patient
	Diagnosis          *Diagnosis              `json:"diagnosis"`
	Treatments         []Treatment             `json:"treatments"`
	Appointments       []Appointment           `json:"appointments"`
	ImagingDiagnostics []ImagingDiagnostic     `json:"imagingDiagnostics"`
	AIAnalysisHistory  []AIAnalysisHistoryItem `json:"aiAnalysisHistory"`
}

// NewPatientRecord returns a record with empty, non-nil collections so that
// it serializes as [] rather than null.
func NewPatientRecord(p Patient) *PatientRecord {
	return &PatientRecord{
		Patient:            p,
		Treatments:         []Treatment{},
		Appointments:       []Appointment{},
		ImagingDiagnostics: []ImagingDiagnostic{},
		AIAnalysisHistory:  []AIAnalysisHistoryItem{},
	}
}

// OwnedBy returns a copy of r assigned to patient id. Every owned row gets id
// as its PatientID and rows without an ID get a new one. Collections of the
// copy are never nil and r is left untouched.
func (r *PatientRecord) OwnedBy(id string) *PatientRecord {
	out := &PatientRecord{Patient: r.Patient}
	out.ID = id

	if r.Diagnosis != nil {
		d := *r.Diagnosis
		d.PatientID = id
		if d.ID == "" {
			d.ID = newID()
		}
		out.Diagnosis = &d
	}

	out.Treatments = make([]Treatment, len(r.Treatments))
	for i, t := range r.Treatments {
		t.PatientID = id
		if t.ID == "" {
			t.ID = newID()
		}
		out.Treatments[i] = t
	}

	out.Appointments = make([]Appointment, len(r.Appointments))
	for i, a := range r.Appointments {
		a.PatientID = id
		if a.ID == "" {
			a.ID = newID()
		}
		out.Appointments[i] = a
	}

	out.ImagingDiagnostics = make([]ImagingDiagnostic, len(r.ImagingDiagnostics))
	for i, d := range r.ImagingDiagnostics {
		d.PatientID = id
		if d.ID == "" {
			d.ID = newID()
		}
		out.ImagingDiagnostics[i] = d
	}

	out.AIAnalysisHistory = make([]AIAnalysisHistoryItem, len(r.AIAnalysisHistory))
	for i, h := range r.AIAnalysisHistory {
		h.PatientID = id
		if h.ID == "" {
			h.ID = newID()
		}
		out.AIAnalysisHistory[i] = h
	}

	return out
}

func newID() string {
	return uuid.New().String()
}
