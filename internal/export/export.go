// Package export renders an evaluation batch as the printable quality
// scorecard workbook: one column per sampled dialog, one row per rubric
// criterion, section subtotal rows and a grand-total row. Layout and
// values are driven entirely by the rubric revision the scorecards were
// bound against.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"chat-quality-go/internal/rubric"
	"chat-quality-go/internal/types"
)

const sheetName = "Evaluación"

// column fills matching the printed form
const (
	fillDarkBlue  = "003366"
	fillBlack     = "000000"
	fillLightBlue = "9BC2E6"
)

// Filename builds the download name: Boleta_<Manager>_<YYYY-MM-DD>.xlsx.
func Filename(managerName string, now time.Time) string {
	name := strings.Join(strings.Fields(managerName), "_")
	if name == "" {
		name = "Gestor"
	}
	return fmt.Sprintf("Boleta_%s_%s.xlsx", name, now.Format("2006-01-02"))
}

// Workbook renders the batch. Results without a scorecard keep their
// column so the sample numbering stays aligned; their cells read zero.
func Workbook(rb *rubric.Rubric, results []types.EvaluationResult, managerName string) (*excelize.File, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("nothing to export")
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)

	lastCol, err := excelize.ColumnNumberToName(2 + len(results))
	if err != nil {
		return nil, fmt.Errorf("column name: %w", err)
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: fillDarkBlue},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	darkStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillDarkBlue}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	blackStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillBlack}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	sectionStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillLightBlue}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	labelStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true},
	})

	// row 1: title across the full width
	f.MergeCell(sheetName, "A1", lastCol+"1")
	f.SetCellValue(sheetName, "A1", rb.Title)
	f.SetCellStyle(sheetName, "A1", lastCol+"1", titleStyle)
	f.SetRowHeight(sheetName, 1, 40)

	// row 2: evaluated operator
	f.MergeCell(sheetName, "A2", "B2")
	f.SetCellValue(sheetName, "A2", "Operador Evaluado:")
	if len(results) > 1 {
		f.MergeCell(sheetName, "C2", lastCol+"2")
	}
	f.SetCellValue(sheetName, "C2", managerName)
	f.SetCellStyle(sheetName, "A2", lastCol+"2", darkStyle)

	// row 3: sampled dialog ids
	f.MergeCell(sheetName, "A3", "B3")
	f.SetCellValue(sheetName, "A3", "LINK DE MUESTRA /NUMERO")
	for i, r := range results {
		cell, _ := excelize.CoordinatesToCellName(3+i, 3)
		if r.DialogID != 0 {
			f.SetCellValue(sheetName, cell, r.DialogID)
		} else {
			f.SetCellValue(sheetName, cell, "N/A")
		}
	}
	f.SetCellStyle(sheetName, "A3", lastCol+"3", blackStyle)

	// row 4: column headers
	f.SetCellValue(sheetName, "A4", "Puntos a calificar")
	f.SetCellValue(sheetName, "B4", "KPI Cump.")
	for i := range results {
		cell, _ := excelize.CoordinatesToCellName(3+i, 4)
		f.SetCellValue(sheetName, cell, fmt.Sprintf("M%d", i+1))
	}
	f.SetCellStyle(sheetName, "A4", lastCol+"4", darkStyle)

	row := 5
	for _, section := range rb.Sections {
		f.SetCellValue(sheetName, cellAt(1, row), section.Label)
		f.SetCellValue(sheetName, cellAt(2, row), section.Max)
		for i, r := range results {
			f.SetCellValue(sheetName, cellAt(3+i, row), sectionTotal(r, section.Key))
		}
		f.SetCellStyle(sheetName, cellAt(1, row), cellAt(2+len(results), row), sectionStyle)
		row++

		for _, crit := range section.Criteria {
			f.SetCellValue(sheetName, cellAt(1, row), crit.Label)
			f.SetCellStyle(sheetName, cellAt(1, row), cellAt(1, row), labelStyle)
			f.SetCellValue(sheetName, cellAt(2, row), crit.Max)
			for i, r := range results {
				f.SetCellValue(sheetName, cellAt(3+i, row), criterionPoints(r, section.Key, crit.Key))
			}
			row++
		}
	}

	// grand total: the exported value is each scorecard's own total, not
	// a recomputation
	f.SetCellValue(sheetName, cellAt(1, row), "TOTAL FINAL")
	f.SetCellValue(sheetName, cellAt(2, row), rb.TotalMax())
	for i, r := range results {
		total := 0.0
		if r.Scored() {
			total = r.Scorecard.Total
		}
		f.SetCellValue(sheetName, cellAt(3+i, row), total)
	}
	f.SetCellStyle(sheetName, cellAt(1, row), cellAt(2+len(results), row), darkStyle)

	f.SetColWidth(sheetName, "A", "A", 60)
	f.SetColWidth(sheetName, "B", "B", 12)
	sampleStart, _ := excelize.ColumnNumberToName(3)
	f.SetColWidth(sheetName, sampleStart, lastCol, 15)

	return f, nil
}

func cellAt(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}

// sectionTotal reads the stored section total by key; unscored results
// read zero so the printed form still shows every sample column.
func sectionTotal(r types.EvaluationResult, sectionKey string) float64 {
	if !r.Scored() {
		return 0
	}
	if s := r.Scorecard.Section(sectionKey); s != nil {
		return s.Total
	}
	return 0
}

func criterionPoints(r types.EvaluationResult, sectionKey, criterionKey string) float64 {
	if !r.Scored() {
		return 0
	}
	s := r.Scorecard.Section(sectionKey)
	if s == nil {
		return 0
	}
	if c := s.Criterion(criterionKey); c != nil {
		return c.Points
	}
	return 0
}
