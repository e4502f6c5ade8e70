package postgres

import (
	"fmt"

	"github.com/jwalitptl/patient-api/internal/model"
	"github.com/jwalitptl/patient-api/internal/repository"
)

// Row types add the storage-only columns (position and the encoded JSON text)
// to the domain structs.

type treatmentRow struct {
	model.Treatment
	LabTestJSON string `db:"lab_test_json"`
	Position    int    `db:"position"`
}

func newTreatmentRow(t model.Treatment, position int) (treatmentRow, error) {
	labTest, err := repository.EncodeDocument(t.LabTest)
	if err != nil {
		return treatmentRow{}, fmt.Errorf("encode labTest of treatment %s: %w", t.ID, err)
	}
	return treatmentRow{Treatment: t, LabTestJSON: labTest, Position: position}, nil
}

func (r treatmentRow) decode() (model.Treatment, error) {
	t := r.Treatment
	labTest, err := repository.DecodeDocument("treatments.labTest", r.LabTestJSON)
	if err != nil {
		return model.Treatment{}, err
	}
	t.LabTest = labTest
	return t, nil
}

type appointmentRow struct {
	model.Appointment
	Position int `db:"position"`
}

type imagingDiagnosticRow struct {
	model.ImagingDiagnostic
	Position int `db:"position"`
}

type aiAnalysisRow struct {
	model.AIAnalysisHistoryItem
	CurrentProtocolsJSON     string `db:"current_protocols_json"`
	SupportingGuidelinesJSON string `db:"supporting_guidelines_json"`
	Position                 int    `db:"position"`
}

func newAIAnalysisRow(item model.AIAnalysisHistoryItem, position int) (aiAnalysisRow, error) {
	protocols, err := repository.EncodeDocument(item.CurrentProtocols)
	if err != nil {
		return aiAnalysisRow{}, fmt.Errorf("encode currentProtocols of ai analysis %s: %w", item.ID, err)
	}
	guidelines, err := repository.EncodeDocument(item.SupportingGuidelines)
	if err != nil {
		return aiAnalysisRow{}, fmt.Errorf("encode supportingGuidelines of ai analysis %s: %w", item.ID, err)
	}
	return aiAnalysisRow{
		AIAnalysisHistoryItem:    item,
		CurrentProtocolsJSON:     protocols,
		SupportingGuidelinesJSON: guidelines,
		Position:                 position,
	}, nil
}

func (r aiAnalysisRow) decode() (model.AIAnalysisHistoryItem, error) {
	item := r.AIAnalysisHistoryItem
	protocols, err := repository.DecodeDocument("aiAnalysisHistory.currentProtocols", r.CurrentProtocolsJSON)
	if err != nil {
		return model.AIAnalysisHistoryItem{}, err
	}
	guidelines, err := repository.DecodeDocument("aiAnalysisHistory.supportingGuidelines", r.SupportingGuidelinesJSON)
	if err != nil {
		return model.AIAnalysisHistoryItem{}, err
	}
	item.CurrentProtocols = protocols
	item.SupportingGuidelines = guidelines
	return item, nil
}
