package table

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the longest sheet name Excel accepts
const maxSheetName = 31

// WriteWorkbook exports sheets into one XLSX workbook, one worksheet per sheet.
// Numeric cells are stored as numbers so the workbook can be charted directly.
func WriteWorkbook(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook %s: no sheets", path)
	}

	f := excelize.NewFile()
	defer f.Close()

	keepDefault := false
	for i, s := range sheets {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		if name == "Sheet1" {
			keepDefault = true
		}

		idx, err := f.NewSheet(name)
		if err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}

		if err := writeRow(f, name, 1, s.Header); err != nil {
			return err
		}
		for r, rec := range s.Rows {
			if err := writeRow(f, name, r+2, rec); err != nil {
				return err
			}
		}
	}

	if !keepDefault {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, rec []string) error {
	cells := make([]interface{}, len(rec))
	for i, v := range rec {
		if n, err := strconv.ParseFloat(v, 64); err == nil && !isIdentifierLike(v) && !math.IsInf(n, 0) && !math.IsNaN(n) {
			cells[i] = n
		} else {
			cells[i] = v
		}
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// isIdentifierLike keeps zero-padded labels such as subject "01" as text
func isIdentifierLike(v string) bool {
	return len(v) > 1 && v[0] == '0' && v[1] != '.'
}
