package templates

import (
	"errors"
	"time"
)

// SectionType selects the pass/fail rule applied to a section's rows.
type SectionType string

const (
	// SectionTolerance passes a row when the measured value deviates from
	// the reference by no more than the section tolerance.
	SectionTolerance SectionType = "tolerance"
	// SectionRange passes a row when the measured value lies within the
	// row's closed [min, max] interval.
	SectionRange SectionType = "range"
	// SectionSimple captures values without any pass/fail rule.
	SectionSimple SectionType = "simple"
)

// NormalizeSectionType validates a section type string.
func NormalizeSectionType(value string) (SectionType, bool) {
	switch SectionType(value) {
	case SectionTolerance, SectionRange, SectionSimple:
		return SectionType(value), true
	default:
		return "", false
	}
}

// TestTemplate is an ordered sequence of sections describing a structured
// test procedure.
type TestTemplate struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Sections  []TestSection `json:"sections"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TestSection groups rows under one rule type. Tolerance sections carry the
// tolerance applied to every row.
type TestSection struct {
	Name      string      `json:"name"`
	Type      SectionType `json:"type"`
	Tolerance *float64    `json:"tolerance,omitempty"`
	Unit      string      `json:"unit,omitempty"`
	Rows      []TestRow   `json:"rows"`
}

// TestRow is one measurement point. Reference applies to tolerance sections,
// Min/Max to range sections. Measured is set when the section is filled in;
// error and pass/fail are always recomputed from it, never stored.
type TestRow struct {
	Label     string   `json:"label"`
	Reference *float64 `json:"reference,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Measured  *float64 `json:"measured,omitempty"`
}

// Validate checks template invariants.
func (t TestTemplate) Validate() error {
	if t.ID == "" {
		return errors.New("test template: empty id")
	}
	if t.Name == "" {
		return errors.New("test template: empty name")
	}
	for _, section := range t.Sections {
		if _, ok := NormalizeSectionType(string(section.Type)); !ok {
			return errors.New("test template: invalid section type")
		}
	}
	return nil
}
