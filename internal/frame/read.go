package frame

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// MaxHeaderSearchRows is how many leading rows are scanned for the header.
const MaxHeaderSearchRows = 20

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file has no header row")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadOptions tunes header detection.
type ReadOptions struct {
	// Required columns identify the header row. When set, the first row
	// within MaxHeaderSearchRows holding every required name is the header.
	// Otherwise the first non-empty row is.
	Required []string
	// Sheet selects an XLSX sheet by name. Empty means the first sheet.
	Sheet string
}

// Read loads a CSV or XLSX file, choosing the format by extension.
func Read(name string, r io.Reader, opts ReadOptions) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(r, opts)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, opts)
	default:
		return nil, fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ReadCSV loads a CSV file. A UTF-8 BOM is stripped; input that is not valid
// UTF-8 is decoded as Windows-1252. Every loaded column is text.
func ReadCSV(r io.Reader, opts ReadOptions) (*Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, charmap.Windows1252.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromGrid(records, opts)
}

// ReadXLSX loads one sheet of an XLSX workbook. Cells are read as their
// formatted text, except date-formatted cells, which are read from their
// serial value and rendered as ISO timestamps.
func ReadXLSX(r io.Reader, opts ReadOptions) (*Frame, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer wb.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyFile
		}
		sheet = sheets[0]
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if err := readDateCells(wb, sheet, rows); err != nil {
		return nil, err
	}
	return fromGrid(rows, opts)
}

// xlsxDateLayout is how date cells are rendered; ParseTimestamp accepts it.
const xlsxDateLayout = "2006-01-02T15:04:05"

// readDateCells replaces the display text of date-formatted cells, which
// follows the workbook's locale (often "1/31/24 10:00"), with an unambiguous
// timestamp built from the cell's serial value.
func readDateCells(wb *excelize.File, sheet string, rows [][]string) error {
	use1904 := false
	if props, err := wb.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		use1904 = *props.Date1904
	}

	dateStyles := make(map[int]bool)
	for r, row := range rows {
		for c, text := range row {
			if strings.TrimSpace(text) == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			styleID, err := wb.GetCellStyle(sheet, cell)
			if err != nil || styleID == 0 {
				continue
			}
			isDate, seen := dateStyles[styleID]
			if !seen {
				isDate = isDateStyle(wb, styleID)
				dateStyles[styleID] = isDate
			}
			if !isDate {
				continue
			}

			raw, err := wb.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
			if err != nil {
				return fmt.Errorf("read %s!%s: %w", sheet, cell, err)
			}
			serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				continue // text stored in a date-formatted cell
			}
			t, err := excelize.ExcelDateToTime(serial, use1904)
			if err != nil {
				continue
			}
			row[c] = t.Round(time.Second).Format(xlsxDateLayout)
		}
	}
	return nil
}

// Built-in number formats that render dates or times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// quoted literals, bracketed sections ([Red], [$-409]) and escaped characters
var numFmtNoise = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

func isDateStyle(wb *excelize.File, styleID int) bool {
	style, err := wb.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormat(*style.CustomNumFmt)
	}
	return builtinDateFormats[style.NumFmt]
}

// isDateFormat reports whether a custom number format renders a date or time.
func isDateFormat(format string) bool {
	code := strings.ToLower(numFmtNoise.ReplaceAllString(format, ""))
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	return strings.ContainsAny(code, "ydhs")
}

func fromGrid(records [][]string, opts ReadOptions) (*Frame, error) {
	headerRow := findHeader(records, opts.Required)
	if headerRow < 0 {
		return nil, ErrEmptyFile
	}

	header := normalizeHeader(records[headerRow])
	var rows [][]string
	for _, rec := range records[headerRow+1:] {
		if isEmptyRow(rec) {
			continue
		}
		row := make([]string, len(rec))
		for i, cell := range rec {
			row[i] = CleanCell(cell)
		}
		rows = append(rows, row)
	}
	return FromRows(header, rows), nil
}

func findHeader(records [][]string, required []string) int {
	first := -1
	limit := min(len(records), MaxHeaderSearchRows)
	for i := 0; i < limit; i++ {
		if isEmptyRow(records[i]) {
			continue
		}
		if first < 0 {
			first = i
		}
		if len(required) > 0 && containsAll(records[i], required) {
			return i
		}
	}
	if first < 0 && len(records) > limit {
		for i := limit; i < len(records); i++ {
			if !isEmptyRow(records[i]) {
				return i
			}
		}
	}
	return first
}

func containsAll(row, required []string) bool {
	have := make(map[string]bool, len(row))
	for _, cell := range row {
		have[headerName(cell)] = true
	}
	for _, name := range required {
		if !have[strings.ToLower(name)] {
			return false
		}
	}
	return true
}

// normalizeHeader cleans header cells and makes duplicates unique by
// suffixing ".1", ".2", and so on. Blank headers become "column_N".
func normalizeHeader(row []string) []string {
	out := make([]string, len(row))
	seen := make(map[string]int, len(row))
	for i, cell := range row {
		name := headerName(cell)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func headerName(cell string) string {
	return strings.ToLower(CleanCell(cell))
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
