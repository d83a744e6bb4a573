package model

import (
	"fmt"
	"strconv"
)

// StateDelta is the set of cell changes that advance a row after a confirmed send.
type StateDelta struct {
	// SetApproachedDate is empty when the row already carries a date.
	SetApproachedDate string `json:"setApproachedDate,omitempty"`
	EmailsSent        int    `json:"emailsSent"`
}

// NewStateDelta computes the delta from the snapshot taken before the send.
func NewStateDelta(s RowState, today string) StateDelta {
	d := StateDelta{EmailsSent: s.EmailsSent + 1}
	if !s.HasApproachedDate() {
		d.SetApproachedDate = today
	}
	return d
}

// Apply returns s advanced by d.
func (d StateDelta) Apply(s RowState) RowState {
	if d.SetApproachedDate != "" && !s.HasApproachedDate() {
		s.ApproachedDate = d.SetApproachedDate
	}
	if d.EmailsSent > s.EmailsSent {
		s.EmailsSent = d.EmailsSent
	}
	return s
}

// CellUpdate is a single-cell write in A1 notation without a sheet prefix.
type CellUpdate struct {
	Range string `json:"range"`
	Value string `json:"value"`
}

// Cells translates d into cell writes for the data row at rowIndex, using
// the column positions the row was read through. The date cell, when
// present, comes first.
func (d StateDelta) Cells(rowIndex int, b HeaderBinding) ([]CellUpdate, error) {
	if b.EmailsSent < 0 || b.ApproachedDate < 0 {
		return nil, fmt.Errorf("%w: state columns are not bound", ErrMissingColumn)
	}
	sheetRow := SheetRow(rowIndex)
	var updates []CellUpdate

	if d.SetApproachedDate != "" {
		updates = append(updates, CellUpdate{
			Range: CellRange(ColumnLetter(b.ApproachedDate), sheetRow),
			Value: d.SetApproachedDate,
		})
	}
	updates = append(updates, CellUpdate{
		Range: CellRange(ColumnLetter(b.EmailsSent), sheetRow),
		Value: strconv.Itoa(d.EmailsSent),
	})
	return updates, nil
}
