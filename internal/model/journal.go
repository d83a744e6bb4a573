package model

import "time"

// JournalStatus is the recorded result of a send attempt
type JournalStatus string

const (
	JournalStatusSent             JournalStatus = "sent"
	JournalStatusFailed           JournalStatus = "failed"
	JournalStatusSheetWriteFailed JournalStatus = "sheet_write_failed"
)

// JournalEntry records one send attempt against a sheet row
type JournalEntry struct {
	ID            string        `json:"id"`
	RunID         string        `json:"runId"`
	SpreadsheetID string        `json:"spreadsheetId"`
	SheetRow      int           `json:"sheetRow"`
	ContactEmail  string        `json:"contactEmail"`
	Step          int           `json:"step"`
	Status        JournalStatus `json:"status"`
	MessageID     *string       `json:"messageId,omitempty"`
	Error         *string       `json:"error,omitempty"`
	Reconciled    bool          `json:"reconciled"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// NeedsReconciliation reports whether the email went out without the sheet
// being updated, and nobody has fixed it yet.
func (e *JournalEntry) NeedsReconciliation() bool {
	return e.Status == JournalStatusSheetWriteFailed && !e.Reconciled
}
