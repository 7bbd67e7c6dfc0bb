package results

import (
	"errors"
	"time"

	templates "labmaint-cloud/internal/templates/domain"
)

// Result types recorded against a completed event.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// MaintenanceResult is the immutable record of a completed inspection or
// service. Sections hold the filled template snapshot: rule inputs and
// measured values only, never derived outcomes.
type MaintenanceResult struct {
	ID            string                  `json:"id"`
	EventID       string                  `json:"event_id"`
	InstrumentID  string                  `json:"instrument_id"`
	TemplateID    string                  `json:"template_id,omitempty"`
	ResultType    string                  `json:"result_type"`
	DocumentRef   string                  `json:"document_ref,omitempty"`
	Notes         string                  `json:"notes,omitempty"`
	CompletedDate time.Time               `json:"completed_date"`
	Sections      []templates.TestSection `json:"sections,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// Validate checks result invariants.
func (r MaintenanceResult) Validate() error {
	if r.ID == "" {
		return errors.New("maintenance result: empty id")
	}
	if r.EventID == "" {
		return errors.New("maintenance result: empty event id")
	}
	if r.InstrumentID == "" {
		return errors.New("maintenance result: empty instrument id")
	}
	if r.CompletedDate.IsZero() {
		return errors.New("maintenance result: zero completed date")
	}
	return nil
}
