package templates

import (
	"math"
	"testing"
)

func f(value float64) *float64 { return &value }

func TestEvaluateRow_ToleranceWithinSpec(t *testing.T) {
	section := TestSection{Type: SectionTolerance, Tolerance: f(0.26)}
	row := TestRow{Reference: f(10.0), Measured: f(10.2)}

	result := EvaluateRow(section, row)
	if !result.Evaluated {
		t.Fatal("row should be evaluated")
	}
	if result.Error == nil || math.Abs(*result.Error-0.2) > 1e-9 {
		t.Fatalf("error = %v, want 0.2", result.Error)
	}
	if !result.Passed {
		t.Fatal("measured 10.2 against 10.0 +/- 0.26 should pass")
	}
}

func TestEvaluateRow_ToleranceOutOfSpec(t *testing.T) {
	section := TestSection{Type: SectionTolerance, Tolerance: f(0.26)}
	row := TestRow{Reference: f(10.0), Measured: f(10.3)}

	result := EvaluateRow(section, row)
	if result.Error == nil || math.Abs(*result.Error-0.3) > 1e-9 {
		t.Fatalf("error = %v, want 0.3", result.Error)
	}
	if result.Passed {
		t.Fatal("measured 10.3 against 10.0 +/- 0.26 should fail")
	}
}

func TestEvaluateRow_ToleranceIncomplete(t *testing.T) {
	cases := []struct {
		name    string
		section TestSection
		row     TestRow
	}{
		{"missing reference", TestSection{Type: SectionTolerance, Tolerance: f(0.1)}, TestRow{Measured: f(1)}},
		{"missing tolerance", TestSection{Type: SectionTolerance}, TestRow{Reference: f(1), Measured: f(1)}},
		{"missing measured", TestSection{Type: SectionTolerance, Tolerance: f(0.1)}, TestRow{Reference: f(1)}},
	}
	for _, tc := range cases {
		result := EvaluateRow(tc.section, tc.row)
		if !result.Incomplete {
			t.Fatalf("%s: expected incomplete", tc.name)
		}
		if result.Passed || result.Evaluated {
			t.Fatalf("%s: incomplete row must not pass", tc.name)
		}
	}
}

func TestEvaluateRow_RangeInclusiveBounds(t *testing.T) {
	section := TestSection{Type: SectionRange}
	row := TestRow{Min: f(5), Max: f(10)}

	row.Measured = f(5)
	if result := EvaluateRow(section, row); !result.Passed {
		t.Fatal("measured at min bound should pass")
	}
	row.Measured = f(10)
	if result := EvaluateRow(section, row); !result.Passed {
		t.Fatal("measured at max bound should pass")
	}
	row.Measured = f(10.01)
	if result := EvaluateRow(section, row); result.Passed {
		t.Fatal("measured above max should fail")
	}
	row.Measured = f(4.99)
	if result := EvaluateRow(section, row); result.Passed {
		t.Fatal("measured below min should fail")
	}
}

func TestEvaluateRow_RangeProducesNoError(t *testing.T) {
	section := TestSection{Type: SectionRange}
	row := TestRow{Min: f(5), Max: f(10), Measured: f(7)}
	if result := EvaluateRow(section, row); result.Error != nil {
		t.Fatalf("range rows produce no error value, got %v", *result.Error)
	}
}

func TestEvaluateRow_SimpleIsRecordOnly(t *testing.T) {
	section := TestSection{Type: SectionSimple}
	row := TestRow{Measured: f(42)}
	result := EvaluateRow(section, row)
	if result.Evaluated || result.Passed || result.Incomplete {
		t.Fatalf("simple rows carry no verdict: %+v", result)
	}
}

func TestEvaluateSection_Aggregate(t *testing.T) {
	section := TestSection{
		Type:      SectionTolerance,
		Tolerance: f(0.5),
		Rows: []TestRow{
			{Reference: f(10), Measured: f(10.2)},
			{Reference: f(20), Measured: f(20.4)},
		},
	}
	result := EvaluateSection(section)
	if !result.Passed {
		t.Fatal("all rows in spec: section should pass")
	}
	if result.Evaluated != 2 {
		t.Fatalf("evaluated = %d, want 2", result.Evaluated)
	}

	section.Rows = append(section.Rows, TestRow{Reference: f(30), Measured: f(31)})
	result = EvaluateSection(section)
	if result.Passed {
		t.Fatal("one failing row must fail the section")
	}
}

func TestEvaluateSection_IncompleteRowsExcludedFromAggregate(t *testing.T) {
	section := TestSection{
		Type:      SectionTolerance,
		Tolerance: f(0.5),
		Rows: []TestRow{
			{Reference: f(10), Measured: f(10.1)},
			{Measured: f(99)}, // no reference
		},
	}
	result := EvaluateSection(section)
	if !result.Passed {
		t.Fatal("incomplete row must not fail the section")
	}
	if result.Incomplete != 1 {
		t.Fatalf("incomplete = %d, want 1", result.Incomplete)
	}
	if result.Evaluated != 1 {
		t.Fatalf("evaluated = %d, want 1", result.Evaluated)
	}
}

func TestEvaluateSection_SimpleRowsExcludedFromAggregate(t *testing.T) {
	section := TestSection{
		Type: SectionSimple,
		Rows: []TestRow{{Measured: f(1)}, {Measured: f(2)}},
	}
	result := EvaluateSection(section)
	if !result.Passed {
		t.Fatal("all-simple section aggregates to pass")
	}
	if result.Evaluated != 0 {
		t.Fatalf("evaluated = %d, want 0", result.Evaluated)
	}
}

func TestEvaluateRow_RecomputesFromMeasured(t *testing.T) {
	section := TestSection{Type: SectionTolerance, Tolerance: f(0.26)}
	row := TestRow{Reference: f(10.0), Measured: f(10.2)}
	first := EvaluateRow(section, row)
	if !first.Passed {
		t.Fatal("initial measurement should pass")
	}

	// Editing the measured value must flip the derived outcome.
	row.Measured = f(10.3)
	second := EvaluateRow(section, row)
	if second.Passed {
		t.Fatal("re-evaluation after edit should fail")
	}
}
