package model

import "encoding/json"

// Diagnosis is the single diagnosis a patient may have. It is unique per patient.
type Diagnosis struct {
	ID          string `db:"id" json:"id"`
	PatientID   string `db:"patient_id" json:"patientId"`
	MainDisease string `db:"main_disease" json:"mainDisease"`
	ICDCode     string `db:"icd_code" json:"icdCode"`
	Stage       string `db:"stage" json:"stage"`
	Notes       string `db:"notes" json:"notes"`
	DiagnosedAt string `db:"diagnosed_at" json:"diagnosedAt"`
}

// Treatment is one treatment entry. LabTest is caller-defined JSON and is
// never interpreted by the service.
type Treatment struct {
	ID         string          `db:"id" json:"id"`
	PatientID  string          `db:"patient_id" json:"patientId"`
	Date       string          `db:"date" json:"date"`
	Medication string          `db:"medication" json:"medication"`
	Dosage     string          `db:"dosage" json:"dosage"`
	Notes      string          `db:"notes" json:"notes"`
	LabTest    json.RawMessage `db:"-" json:"labTest"`
}

type ImagingDiagnostic struct {
	ID        string `db:"id" json:"id"`
	PatientID string `db:"patient_id" json:"patientId"`
	Date      string `db:"date" json:"date"`
	Type      string `db:"type" json:"type"`
	BodyPart  string `db:"body_part" json:"bodyPart"`
	Findings  string `db:"findings" json:"findings"`
	ImageURL  string `db:"image_url" json:"imageUrl"`
}

// AIAnalysisHistoryItem records one AI-assisted analysis. CurrentProtocols and
// SupportingGuidelines are opaque JSON, like Treatment.LabTest.
type AIAnalysisHistoryItem struct {
	ID                   string          `db:"id" json:"id"`
	PatientID            string          `db:"patient_id" json:"patientId"`
	AnalyzedAt           string          `db:"analyzed_at" json:"analyzedAt"`
	Summary              string          `db:"summary" json:"summary"`
	Recommendation       string          `db:"recommendation" json:"recommendation"`
	Confidence           float64         `db:"confidence" json:"confidence"`
	CurrentProtocols     json.RawMessage `db:"-" json:"currentProtocols"`
	SupportingGuidelines json.RawMessage `db:"-" json:"supportingGuidelines"`
}
