package model

import "time"

const EventPatientUpdated = "patient.updated"

// PatientUpdatedEvent is published after an update has been committed.
type PatientUpdatedEvent struct {
	PatientID  string         `json:"patientId"`
	RowCounts  map[string]int `json:"rowCounts"`
	OccurredAt time.Time      `json:"occurredAt"`
}
