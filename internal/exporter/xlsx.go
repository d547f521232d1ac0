package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"classpulse/internal/relation"
)

// Section is one worksheet in an exported workbook.
type Section struct {
	Title string
	Rel   relation.Relation
}

// RenderXLSX renders the sections as an Excel workbook, one worksheet per
// section with a header row followed by data rows. Numeric cells are written
// as numbers so hour totals stay usable in spreadsheet formulas.
func RenderXLSX(sections []Section) ([]byte, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("workbook needs at least one section")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, section := range sections {
		name := section.Title
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}

		// New files come seeded with "Sheet1"
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("failed to name sheet %q: %w", name, err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
			}
		}

		if err := writeSheet(f, name, section.Rel); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, rel relation.Relation) error {
	for j, col := range rel.Columns() {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header %q: %w", col, err)
		}
	}

	for i := 0; i < rel.Len(); i++ {
		row := rel.Row(i)
		for j := 0; j < row.Len(); j++ {
			value := row.At(j)
			if value.IsNull() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value.Native()); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}
	return nil
}
