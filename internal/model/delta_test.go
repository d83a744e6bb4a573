package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateDelta(t *testing.T) {
	fresh := RowState{ContactEmail: "a@x.com", Language: LanguageEN}
	d := NewStateDelta(fresh, "2024-03-01")
	assert.Equal(t, StateDelta{SetApproachedDate: "2024-03-01", EmailsSent: 1}, d)

	contacted := RowState{ContactEmail: "a@x.com", Language: LanguageEN, EmailsSent: 2, ApproachedDate: "2024-01-01"}
	d = NewStateDelta(contacted, "2024-03-01")
	assert.Equal(t, StateDelta{EmailsSent: 3}, d)
}

func TestStateDeltaNeverRegresses(t *testing.T) {
	s := RowState{ContactEmail: "a@x.com", Language: LanguageLV}
	dates := []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22"}
	for i, today := range dates {
		d := NewStateDelta(s, today)
		assert.Greater(t, d.EmailsSent, s.EmailsSent)
		next := d.Apply(s)
		assert.Equal(t, i+1, next.EmailsSent)
		assert.Equal(t, "2024-01-01", next.ApproachedDate, "approached date must only be set once")
		s = next
	}
}

func TestStateDeltaApplyIsIdempotentForDate(t *testing.T) {
	s := RowState{ApproachedDate: "2024-01-01", EmailsSent: 4}
	d := StateDelta{SetApproachedDate: "2025-01-01", EmailsSent: 2}
	got := d.Apply(s)
	assert.Equal(t, "2024-01-01", got.ApproachedDate)
	assert.Equal(t, 4, got.EmailsSent)
}

func TestStateDeltaCells(t *testing.T) {
	b := mustBind(t)

	d := StateDelta{SetApproachedDate: "2024-03-01", EmailsSent: 1}
	cells, err := d.Cells(0, b)
	require.NoError(t, err)
	assert.Equal(t, []CellUpdate{
		{Range: "E2:E2", Value: "2024-03-01"},
		{Range: "D2:D2", Value: "1"},
	}, cells)

	d = StateDelta{EmailsSent: 3}
	cells, err = d.Cells(7, b)
	require.NoError(t, err)
	assert.Equal(t, []CellUpdate{{Range: "D9:D9", Value: "3"}}, cells)
}

func TestStateDeltaCellsFollowBindingWithPaddedHeaders(t *testing.T) {
	headers := []string{"Notes", " Contact email", "Contact Name", "Language", "Emails Sent ", "Approached (Date)\t"}
	b, err := BindHeaders(headers, DefaultColumns())
	require.NoError(t, err)

	cells, err := StateDelta{SetApproachedDate: "2024-03-01", EmailsSent: 2}.Cells(1, b)
	require.NoError(t, err)
	assert.Equal(t, []CellUpdate{
		{Range: "F3:F3", Value: "2024-03-01"},
		{Range: "E3:E3", Value: "2"},
	}, cells)
}

func TestStateDeltaCellsUnboundColumns(t *testing.T) {
	_, err := StateDelta{EmailsSent: 1}.Cells(0, HeaderBinding{EmailsSent: -1, ApproachedDate: -1})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestRunReportAdd(t *testing.T) {
	var r RunReport
	r.Add(RowOutcome{Status: RowStatusUpdated})
	r.Add(RowOutcome{Status: RowStatusSent, Unreconciled: true})
	r.Add(RowOutcome{Status: RowStatusSkipped})
	r.Add(RowOutcome{Status: RowStatusFailed})
	assert.Equal(t, 2, r.Sent)
	assert.Equal(t, 1, r.Unreconciled)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.Len(t, r.Outcomes, 4)
}

func TestRowStatusIsTerminal(t *testing.T) {
	for _, s := range []RowStatus{RowStatusUpdated, RowStatusSkipped, RowStatusFailed} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []RowStatus{RowStatusPending, RowStatusReady, RowStatusSent} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestRunReportCountsReadyForDryRun(t *testing.T) {
	r := RunReport{DryRun: true}
	r.Add(RowOutcome{Status: RowStatusReady})
	r.Add(RowOutcome{Status: RowStatusReady})
	assert.Equal(t, 2, r.Ready)
	assert.Zero(t, r.Sent)
}
