package frame

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet of an exported workbook.
type Sheet struct {
	Name  string
	Frame *Frame
}

// WriteXLSX writes each sheet's frame to a workbook, header first. Integers
// and decimals are written as numbers, timestamps as Excel dates via excelize.
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	wb := excelize.NewFile()
	defer wb.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := wb.SetSheetName(wb.GetSheetName(0), sheet.Name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := wb.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet.Name, err)
		}
		if err := writeSheet(wb, sheet); err != nil {
			return err
		}
	}

	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(wb *excelize.File, sheet Sheet) error {
	if sheet.Frame == nil {
		return nil
	}
	for c, name := range sheet.Frame.names {
		if err := setCell(wb, sheet.Name, c+1, 1, name); err != nil {
			return err
		}
		col := sheet.Frame.cols[name]
		for r, v := range col.Values {
			if v == nil {
				continue
			}
			if err := setCell(wb, sheet.Name, c+1, r+2, cellValue(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func setCell(wb *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := wb.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func cellValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return v
}
