package model

import (
	"errors"
	"fmt"
	"strings"
)

// Table errors
var (
	ErrDuplicateHeader = errors.New("duplicate column header")
	ErrRowOutOfRange   = errors.New("row index out of range")
)

// Table is the contents of a sheet tab: the header row followed by data rows.
// Rows may be shorter than Headers; missing trailing cells are empty.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// IsEmpty reports whether the table has no header row.
func (t Table) IsEmpty() bool {
	return len(t.Headers) == 0
}

// Row returns the raw cells of the data row at rowIndex.
func (t Table) Row(rowIndex int) ([]string, error) {
	if rowIndex < 0 || rowIndex >= len(t.Rows) {
		return nil, fmt.Errorf("%w: %d (table has %d rows)", ErrRowOutOfRange, rowIndex, len(t.Rows))
	}
	return t.Rows[rowIndex], nil
}

// Cell returns the value at column i of row, or "" when the row is too short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// ColumnLetter converts a zero-based column index to its A1-notation letters
// (0 -> A, 25 -> Z, 26 -> AA, 702 -> AAA).
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// SheetRow maps a zero-based data row index to its 1-based sheet row.
// Row 1 holds the headers.
func SheetRow(rowIndex int) int {
	return rowIndex + 2
}

// CellRange returns a single-cell A1 range such as "E5:E5".
func CellRange(letter string, sheetRow int) string {
	return fmt.Sprintf("%s%d:%s%d", letter, sheetRow, letter, sheetRow)
}

// ColumnMap maps header names to column letters.
type ColumnMap map[string]string

// NewColumnMap builds the header -> letter map from header positions.
// Headers are trimmed the same way BindHeaders trims them, so "Emails Sent "
// and "Emails Sent" are the same column and may not both appear.
func NewColumnMap(headers []string) (ColumnMap, error) {
	m := make(ColumnMap, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, ok := m[h]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateHeader, h)
		}
		m[h] = ColumnLetter(i)
	}
	return m, nil
}

// Letter returns the column letter for header.
func (m ColumnMap) Letter(header string) (string, bool) {
	l, ok := m[strings.TrimSpace(header)]
	return l, ok
}
