package model

import "time"

// RowStatus is where a row ended up during a run
type RowStatus string

const (
	RowStatusPending RowStatus = "pending"
	RowStatusReady   RowStatus = "ready"
	RowStatusSent    RowStatus = "sent"
	RowStatusUpdated RowStatus = "updated"
	RowStatusSkipped RowStatus = "skipped"
	RowStatusFailed  RowStatus = "failed"
)

// IsTerminal reports whether no further transition is possible in this run.
func (s RowStatus) IsTerminal() bool {
	switch s {
	case RowStatusUpdated, RowStatusSkipped, RowStatusFailed:
		return true
	}
	return false
}

// RowOutcome is the result of processing one row.
type RowOutcome struct {
	Row          int         `json:"row"`
	SheetRow     int         `json:"sheetRow"`
	ContactEmail string      `json:"contactEmail,omitempty"`
	Step         int         `json:"step"`
	Status       RowStatus   `json:"status"`
	MessageID    string      `json:"messageId,omitempty"`
	Delta        *StateDelta `json:"delta,omitempty"`
	// Unreconciled is set when the email went out but the sheet was not updated.
	Unreconciled bool  `json:"unreconciled,omitempty"`
	Err          error `json:"-"`
}

// RunReport summarises a run over a set of rows.
type RunReport struct {
	RunID        string       `json:"runId"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
	DryRun       bool         `json:"dryRun"`
	Outcomes     []RowOutcome `json:"outcomes"`
	Ready        int          `json:"ready"`
	Sent         int          `json:"sent"`
	Skipped      int          `json:"skipped"`
	Failed       int          `json:"failed"`
	Unreconciled int          `json:"unreconciled"`
	LimitReached bool         `json:"limitReached"`
}

// Add appends o and updates the counters.
func (r *RunReport) Add(o RowOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case RowStatusReady:
		r.Ready++
	case RowStatusSent, RowStatusUpdated:
		r.Sent++
		if o.Unreconciled {
			r.Unreconciled++
		}
	case RowStatusSkipped:
		r.Skipped++
	case RowStatusFailed:
		r.Failed++
	}
}
