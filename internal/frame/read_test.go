package frame

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV_HeaderSearchAndCleanup(t *testing.T) {
	input := "\xEF\xBB\xBFExport generated 2024-01-31\n" +
		"\n" +
		"Business_Code,Quantity,Quantity\n" +
		"=\"B-1\", 5 ,6\n" +
		",,\n" +
		"B-2,7\n"

	f, err := ReadCSV(strings.NewReader(input), ReadOptions{Required: []string{"business_code", "quantity"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"business_code", "quantity", "quantity.1"}, f.Columns())
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, "B-1", f.Value("business_code", 0))
	assert.Equal(t, "5", f.Value("quantity", 0))
	assert.Nil(t, f.Value("quantity.1", 1))
}

func TestReadCSV_FirstNonEmptyRowWithoutRequired(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("\n\na,b\n1,2\n"), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Columns())
	assert.Equal(t, 1, f.Len())
}

func TestReadCSV_Windows1252Fallback(t *testing.T) {
	// "Año" in Windows-1252 is 0x41 0xF1 0x6F
	input := []byte("name\nA\xF1o\n")

	f, err := ReadCSV(bytes.NewReader(input), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Año", f.Value("name", 0))
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("\n\n"), ReadOptions{})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadXLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"Business_Code", "Quantity"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"B-1", 5}))
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]any{"B-2", 7}))
	var buf bytes.Buffer
	_, err := wb.WriteTo(&buf)
	require.NoError(t, err)

	f, err := Read("orders.xlsx", &buf, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"business_code", "quantity"}, f.Columns())
	assert.Equal(t, KindText, f.Column("quantity").Kind)
	assert.Equal(t, "7", f.Value("quantity", 1))
}

func TestReadXLSX_DateCells(t *testing.T) {
	ordered := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"business_code", "order_date", "receipt_date", "quantity"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"B-1", ordered, "05/02/2024 14:00:00", 12}))

	custom := "dd/mm/yyyy"
	style, err := wb.NewStyle(&excelize.Style{CustomNumFmt: &custom})
	require.NoError(t, err)
	require.NoError(t, wb.SetCellValue(sheet, "C3", ordered.AddDate(0, 0, 1)))
	require.NoError(t, wb.SetCellStyle(sheet, "C3", "C3", style))
	require.NoError(t, wb.SetCellValue(sheet, "A3", "B-2"))

	var buf bytes.Buffer
	_, err = wb.WriteTo(&buf)
	require.NoError(t, err)

	f, err := ReadXLSX(&buf, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-31T10:00:00", f.Value("order_date", 0), "display text is locale dependent")
	assert.Equal(t, "05/02/2024 14:00:00", f.Value("receipt_date", 0), "text cells are left alone")
	assert.Equal(t, "2024-02-01T10:00:00", f.Value("receipt_date", 1))
	assert.Equal(t, "12", f.Value("quantity", 0))

	require.NoError(t, f.CoerceTimestamp("order_date"))
	assert.Equal(t, ordered, f.Value("order_date", 0))
}

func TestIsDateFormat(t *testing.T) {
	tests := []struct {
		format string
		want   bool
	}{
		{"dd/mm/yyyy hh:mm:ss", true},
		{"[$-409]mmmm d, yyyy", true},
		{"mm:ss", true},
		{"0.00", false},
		{`#,##0 "days"`, false},
		{"[Red]0.00;[Blue]-0.00", false},
		{"General", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isDateFormat(tt.format), tt.format)
	}
}

func TestRead_UnsupportedExtension(t *testing.T) {
	_, err := Read("orders.pdf", strings.NewReader(""), ReadOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	f := FromRows([]string{"code", "qty"}, [][]string{{"P1", "2"}, {"P2", ""}})
	require.NoError(t, f.CoerceInteger("qty"))

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Sheet{Name: "data", Frame: f}, Sheet{Name: "empty"}))

	got, err := ReadXLSX(bytes.NewReader(buf.Bytes()), ReadOptions{Sheet: "data"})
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "qty"}, got.Columns())
	assert.Equal(t, "2", got.Value("qty", 0))
	assert.Nil(t, got.Value("qty", 1))
}
