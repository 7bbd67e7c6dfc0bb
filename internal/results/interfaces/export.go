package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	instruments "labmaint-cloud/internal/instruments/domain"
	results "labmaint-cloud/internal/results/domain"
	templates "labmaint-cloud/internal/templates/domain"
)

// BuildResultPDF renders a maintenance result certificate.
func BuildResultPDF(instrument *instruments.Instrument, result *results.MaintenanceResult) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Maintenance Result")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if instrument != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Equipment: %s", instrument.EqpID))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Make/Model: %s %s", instrument.Make, instrument.Model))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Serial: %s", instrument.Serial))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Location: %s", instrument.Location))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Maintenance Type: %s", instrument.MaintenanceType))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Result: %s", result.ResultType))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Completed: %s", result.CompletedDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Recorded: %s", result.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if result.DocumentRef != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Document: %s", result.DocumentRef))
		pdf.Ln(5)
	}
	if result.Notes != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Notes: %s", result.Notes))
		pdf.Ln(5)
	}

	for _, section := range result.Sections {
		outcome := templates.EvaluateSection(section)
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("%s (%s)", section.Name, section.Type))
		pdf.Ln(7)
		pdf.CellFormat(50, 6, "Test", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Expected", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Measured", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Error", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Outcome", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for i, row := range section.Rows {
			pdf.CellFormat(50, 6, row.Label, "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 6, expectedLabel(section, row), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, floatLabel(row.Measured), "1", 0, "C", false, 0, "")
			rowResult := templates.RowResult{}
			if i < len(outcome.Rows) {
				rowResult = outcome.Rows[i]
			}
			pdf.CellFormat(25, 6, floatLabel(rowResult.Error), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, outcomeLabel(rowResult), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders the maintenance history of one instrument.
func BuildHistoryXLSX(instrument *instruments.Instrument, history []results.MaintenanceResult) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "instrument"
	historySheet := "history"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(historySheet)

	_ = f.SetCellValue(summarySheet, "A1", "Maintenance History")
	_ = f.SetCellValue(summarySheet, "A3", "Equipment")
	_ = f.SetCellValue(summarySheet, "B3", instrument.EqpID)
	_ = f.SetCellValue(summarySheet, "A4", "Make")
	_ = f.SetCellValue(summarySheet, "B4", instrument.Make)
	_ = f.SetCellValue(summarySheet, "A5", "Model")
	_ = f.SetCellValue(summarySheet, "B5", instrument.Model)
	_ = f.SetCellValue(summarySheet, "A6", "Serial")
	_ = f.SetCellValue(summarySheet, "B6", instrument.Serial)
	_ = f.SetCellValue(summarySheet, "A7", "Location")
	_ = f.SetCellValue(summarySheet, "B7", instrument.Location)
	_ = f.SetCellValue(summarySheet, "A8", "Maintenance Type")
	_ = f.SetCellValue(summarySheet, "B8", instrument.MaintenanceType)
	_ = f.SetCellValue(summarySheet, "A9", "Frequency")
	_ = f.SetCellValue(summarySheet, "B9", string(instrument.Frequency))
	if instrument.NextMaintenanceDate != nil {
		_ = f.SetCellValue(summarySheet, "A10", "Next Due")
		_ = f.SetCellValue(summarySheet, "B10", instrument.NextMaintenanceDate.Format("2006-01-02"))
	}

	_ = f.SetCellValue(historySheet, "A1", "Completed")
	_ = f.SetCellValue(historySheet, "B1", "Result")
	_ = f.SetCellValue(historySheet, "C1", "Document")
	_ = f.SetCellValue(historySheet, "D1", "Notes")
	for i, record := range history {
		row := i + 2
		_ = f.SetCellValue(historySheet, fmt.Sprintf("A%d", row), record.CompletedDate.Format("2006-01-02"))
		_ = f.SetCellValue(historySheet, fmt.Sprintf("B%d", row), record.ResultType)
		_ = f.SetCellValue(historySheet, fmt.Sprintf("C%d", row), record.DocumentRef)
		_ = f.SetCellValue(historySheet, fmt.Sprintf("D%d", row), record.Notes)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func expectedLabel(section templates.TestSection, row templates.TestRow) string {
	switch section.Type {
	case templates.SectionTolerance:
		return fmt.Sprintf("%s +/- %s", floatLabel(row.Reference), floatLabel(section.Tolerance))
	case templates.SectionRange:
		return fmt.Sprintf("%s .. %s", floatLabel(row.Min), floatLabel(row.Max))
	default:
		return ""
	}
}

func floatLabel(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *value)
}

func outcomeLabel(row templates.RowResult) string {
	switch {
	case row.Incomplete:
		return "incomplete"
	case !row.Evaluated:
		return "recorded"
	case row.Passed:
		return "pass"
	default:
		return "fail"
	}
}
