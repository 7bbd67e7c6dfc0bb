package templates

import "math"

// RowResult is the derived outcome of one row. Evaluated is false for
// record-only rows; Incomplete marks rows whose rule inputs are missing and
// which therefore carry no verdict.
type RowResult struct {
	Error      *float64 `json:"error,omitempty"`
	Passed     bool     `json:"passed"`
	Evaluated  bool     `json:"evaluated"`
	Incomplete bool     `json:"incomplete,omitempty"`
}

// SectionResult aggregates the derived outcomes of a filled section.
type SectionResult struct {
	Rows       []RowResult `json:"rows"`
	Passed     bool        `json:"passed"`
	Evaluated  int         `json:"evaluated"`
	Incomplete int         `json:"incomplete"`
}

// EvaluateRow scores one row against its section's rule. Results are always
// recomputed from the measured value and the rule inputs; callers must never
// trust previously derived values after a measurement changes.
//
// Tolerance rows need reference, tolerance and measured; a missing input
// yields an incomplete result, never a silent pass. Range rows need min, max
// and measured; bounds are inclusive on both ends and no error value is
// produced. Simple rows are record-only.
func EvaluateRow(section TestSection, row TestRow) RowResult {
	switch section.Type {
	case SectionSimple:
		return RowResult{}
	case SectionTolerance:
		if row.Reference == nil || section.Tolerance == nil || row.Measured == nil {
			return RowResult{Incomplete: true}
		}
		err := *row.Measured - *row.Reference
		return RowResult{
			Error:     &err,
			Passed:    math.Abs(err) <= *section.Tolerance,
			Evaluated: true,
		}
	case SectionRange:
		if row.Min == nil || row.Max == nil || row.Measured == nil {
			return RowResult{Incomplete: true}
		}
		return RowResult{
			Passed:    *row.Min <= *row.Measured && *row.Measured <= *row.Max,
			Evaluated: true,
		}
	default:
		return RowResult{Incomplete: true}
	}
}

// EvaluateSection scores every row of a filled section. The aggregate pass
// is the AND over evaluated rows; simple and incomplete rows are excluded
// from the aggregate.
func EvaluateSection(section TestSection) SectionResult {
	result := SectionResult{
		Rows:   make([]RowResult, 0, len(section.Rows)),
		Passed: true,
	}
	for _, row := range section.Rows {
		rowResult := EvaluateRow(section, row)
		result.Rows = append(result.Rows, rowResult)
		if rowResult.Incomplete {
			result.Incomplete++
			continue
		}
		if !rowResult.Evaluated {
			continue
		}
		result.Evaluated++
		if !rowResult.Passed {
			result.Passed = false
		}
	}
	return result
}
