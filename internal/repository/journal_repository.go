package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dripsheet/dripsheet/internal/database"
	"github.com/dripsheet/dripsheet/internal/model"
)

// JournalRepository persists send attempts so that an email which went out
// without its sheet update can be found and reconciled.
type JournalRepository struct {
	db *database.Postgres
}

// NewJournalRepository creates a new JournalRepository
func NewJournalRepository(db *database.Postgres) *JournalRepository {
	return &JournalRepository{db: db}
}

// Record inserts a journal entry, filling in ID and CreatedAt when unset
func (r *JournalRepository) Record(ctx context.Context, e *model.JournalEntry) error {
	if e.SpreadsheetID == "" || e.ContactEmail == "" || e.Status == "" {
		return fmt.Errorf("%w: journal entry needs spreadsheet, email and status", ErrInvalidInput)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO send_journal (id, run_id, spreadsheet_id, sheet_row, contact_email,
		    step, status, message_id, error, reconciled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.RunID,
		e.SpreadsheetID,
		e.SheetRow,
		e.ContactEmail,
		e.Step,
		string(e.Status),
		e.MessageID,
		e.Error,
		e.Reconciled,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record send: %w", err)
	}
	return nil
}

// HasUnreconciled reports whether a sent-but-not-written entry exists for
// this contact and step
func (r *JournalRepository) HasUnreconciled(ctx context.Context, spreadsheetID, contactEmail string, step int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM send_journal
			WHERE spreadsheet_id = $1 AND lower(contact_email) = lower($2) AND step = $3
			  AND status = $4 AND NOT reconciled
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query,
		spreadsheetID, contactEmail, step, string(model.JournalStatusSheetWriteFailed),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check journal: %w", err)
	}
	return exists, nil
}

// ListUnreconciled returns open entries for a spreadsheet, oldest first
func (r *JournalRepository) ListUnreconciled(ctx context.Context, spreadsheetID string) ([]*model.JournalEntry, error) {
	query := `
		SELECT id, run_id, spreadsheet_id, sheet_row, contact_email, step, status,
		       message_id, error, reconciled, created_at
		FROM send_journal
		WHERE spreadsheet_id = $1 AND status = $2 AND NOT reconciled
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, spreadsheetID, string(model.JournalStatusSheetWriteFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to list unreconciled sends: %w", err)
	}
	defer rows.Close()

	var entries []*model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var status string
		if err := rows.Scan(
			&e.ID,
			&e.RunID,
			&e.SpreadsheetID,
			&e.SheetRow,
			&e.ContactEmail,
			&e.Step,
			&status,
			&e.MessageID,
			&e.Error,
			&e.Reconciled,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Status = model.JournalStatus(status)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal: %w", err)
	}
	return entries, nil
}

// MarkReconciled closes an entry once the operator has fixed the sheet
func (r *JournalRepository) MarkReconciled(ctx context.Context, id string) error {
	query := `UPDATE send_journal SET reconciled = TRUE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry reconciled: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark entry reconciled: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a single entry
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*model.JournalEntry, error) {
	query := `
		SELECT id, run_id, spreadsheet_id, sheet_row, contact_email, step, status,
		       message_id, error, reconciled, created_at
		FROM send_journal
		WHERE id = $1
	`
	var e model.JournalEntry
	var status string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.RunID,
		&e.SpreadsheetID,
		&e.SheetRow,
		&e.ContactEmail,
		&e.Step,
		&status,
		&e.MessageID,
		&e.Error,
		&e.Reconciled,
		&e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}
	e.Status = model.JournalStatus(status)
	return &e, nil
}
