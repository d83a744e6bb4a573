package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dripsheet/dripsheet/internal/config"
	"github.com/dripsheet/dripsheet/internal/email"
	"github.com/dripsheet/dripsheet/internal/logger"
	"github.com/dripsheet/dripsheet/internal/model"
	"github.com/dripsheet/dripsheet/internal/sheets"
	"github.com/dripsheet/dripsheet/internal/template"
)

// writeBackTimeout bounds the sheet update that follows a confirmed send.
const writeBackTimeout = time.Minute

// Campaign service errors
var (
	ErrMailSendFailed        = errors.New("mail send failed")
	ErrSheetWriteFailed      = errors.New("sheet write failed after send")
	ErrRunInProgress         = errors.New("another run holds the lock for this spreadsheet")
	ErrPendingReconciliation = errors.New("previous send of this step is not reconciled")
)

// TemplateResolver renders the body for a contact at a campaign step
type TemplateResolver interface {
	Resolve(ctx context.Context, lang model.Language, step int, contactName string) (string, error)
}

// Journal records send attempts. Implemented by repository.JournalRepository.
type Journal interface {
	Record(ctx context.Context, e *model.JournalEntry) error
	HasUnreconciled(ctx context.Context, spreadsheetID, contactEmail string, step int) (bool, error)
}

// CampaignService drives each contact row through the drip campaign
type CampaignService struct {
	sheet    sheets.Gateway
	sender   email.Sender
	resolver TemplateResolver
	journal  Journal
	locker   RunLocker
	cfg      *config.Config
	log      *logger.Logger
	now      func() time.Time
}

// NewCampaignService creates a new CampaignService. journal and locker may be nil.
func NewCampaignService(
	sheet sheets.Gateway,
	sender email.Sender,
	resolver TemplateResolver,
	journal Journal,
	locker RunLocker,
	cfg *config.Config,
	log *logger.Logger,
) *CampaignService {
	return &CampaignService{
		sheet:    sheet,
		sender:   sender,
		resolver: resolver,
		journal:  journal,
		locker:   locker,
		cfg:      cfg,
		log:      log.WithComponent("campaign"),
		now:      time.Now,
	}
}

// Snapshot is the table as read at the start of a run with its headers bound.
// Reads and write-backs both address columns through Binding.
type Snapshot struct {
	Table   model.Table
	Binding model.HeaderBinding
}

// NewSnapshot binds the configured campaign columns against table. Headers
// that repeat after trimming are rejected, since either copy could be the
// one a write lands in.
func NewSnapshot(table model.Table, cols model.Columns) (*Snapshot, error) {
	if _, err := model.NewColumnMap(table.Headers); err != nil {
		return nil, err
	}
	binding, err := model.BindHeaders(table.Headers, cols)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Table: table, Binding: binding}, nil
}

// Load reads the whole sheet. Any failure here is fatal for the run.
func (s *CampaignService) Load(ctx context.Context) (*Snapshot, error) {
	table, err := s.sheet.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sheet: %w", err)
	}
	if table.IsEmpty() {
		return &Snapshot{Table: table}, nil
	}
	snap, err := NewSnapshot(table, s.cfg.Campaign.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to bind sheet headers: %w", err)
	}
	return snap, nil
}

// SelectNext extracts the typed state of the row at rowIndex.
//
// A malformed "Emails Sent" cell is an error only in strict mode; otherwise
// it is logged and the row is treated as step 0.
func (s *CampaignService) SelectNext(table model.Table, binding model.HeaderBinding, rowIndex int) (model.RowState, error) {
	cells, err := table.Row(rowIndex)
	if err != nil {
		return model.RowState{Row: rowIndex}, err
	}

	state, err := model.ParseRow(binding, rowIndex, cells)
	if errors.Is(err, model.ErrMalformedState) && !s.cfg.Campaign.StrictState {
		s.log.WithRow(rowIndex).Warn().
			Err(err).
			Str("email", state.ContactEmail).
			Msg("treating malformed emails sent count as 0")
		return state, nil
	}
	return state, err
}

// PrepareSend renders the body for the contact's next step.
// template.ErrTemplateNotFound means the campaign is exhausted for this contact.
func (s *CampaignService) PrepareSend(ctx context.Context, state model.RowState) (string, error) {
	return s.resolver.Resolve(ctx, state.Language, state.Step(), state.ContactName)
}

// Send mails the rendered body to the contact. It is attempted once.
func (s *CampaignService) Send(ctx context.Context, state model.RowState, body string) (email.SendResult, error) {
	res, err := s.sender.Send(ctx, email.Message{
		To:       state.ContactEmail,
		Subject:  s.cfg.Campaign.Subject,
		TextBody: body,
		ReplyTo:  s.cfg.Email.ReplyTo,
	})
	if err != nil {
		return email.SendResult{}, fmt.Errorf("%w: %v", ErrMailSendFailed, err)
	}
	return res, nil
}

// ComputeDelta advances the pre-send state by one sent email.
func (s *CampaignService) ComputeDelta(state model.RowState, today time.Time) model.StateDelta {
	return model.NewStateDelta(state, today.Format(s.cfg.Campaign.DateFormat))
}

// ApplyDelta writes delta to the row in one batch request, addressing the
// columns the row was read through.
func (s *CampaignService) ApplyDelta(ctx context.Context, delta model.StateDelta, rowIndex int, binding model.HeaderBinding) error {
	cells, err := delta.Cells(rowIndex, binding)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSheetWriteFailed, err)
	}
	return s.writeCells(ctx, rowIndex, cells)
}

func (s *CampaignService) writeCells(ctx context.Context, rowIndex int, cells []model.CellUpdate) error {
	updated, err := s.sheet.WriteCells(ctx, cells)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSheetWriteFailed, err)
	}
	if updated != len(cells) {
		s.log.WithRow(rowIndex).Warn().
			Int("expected", len(cells)).
			Int("updated", updated).
			Msg("sheet reported a different number of updated cells")
	}
	return nil
}

// ProcessRow runs one row through select, prepare, send, delta and apply.
// Row-level failures are reported in the outcome and never returned.
func (s *CampaignService) ProcessRow(ctx context.Context, runID string, snap *Snapshot, rowIndex int, today time.Time) model.RowOutcome {
	out := model.RowOutcome{
		Row:      rowIndex,
		SheetRow: model.SheetRow(rowIndex),
		Status:   model.RowStatusPending,
	}

	state, err := s.SelectNext(snap.Table, snap.Binding, rowIndex)
	out.ContactEmail = state.ContactEmail
	out.Step = state.Step()
	if err != nil {
		return skipped(out, err)
	}

	if blocked, err := s.pendingReconciliation(ctx, state); err != nil {
		out.Status = model.RowStatusFailed
		out.Err = err
		return out
	} else if blocked {
		return skipped(out, ErrPendingReconciliation)
	}

	body, err := s.PrepareSend(ctx, state)
	if err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			return skipped(out, err)
		}
		out.Status = model.RowStatusFailed
		out.Err = err
		return out
	}

	// Resolve the write-back before sending so a column problem fails the
	// row while nothing has gone out yet.
	delta := s.ComputeDelta(state, today)
	cells, err := delta.Cells(rowIndex, snap.Binding)
	if err != nil {
		out.Status = model.RowStatusFailed
		out.Err = err
		return out
	}
	out.Status = model.RowStatusReady

	res, err := s.Send(ctx, state, body)
	if err != nil {
		out.Status = model.RowStatusFailed
		out.Err = err
		s.record(ctx, runID, out, model.JournalStatusFailed)
		return out
	}
	out.Status = model.RowStatusSent
	out.MessageID = res.MessageID
	out.Delta = &delta

	// The email is out: a cancelled run must not cut the write-back short.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
	defer cancel()
	if err := s.writeCells(writeCtx, rowIndex, cells); err != nil {
		out.Unreconciled = true
		out.Err = err
		s.record(ctx, runID, out, model.JournalStatusSheetWriteFailed)
		return out
	}
	out.Status = model.RowStatusUpdated
	s.record(ctx, runID, out, model.JournalStatusSent)
	return out
}

func skipped(out model.RowOutcome, err error) model.RowOutcome {
	out.Status = model.RowStatusSkipped
	out.Err = err
	return out
}

func (s *CampaignService) pendingReconciliation(ctx context.Context, state model.RowState) (bool, error) {
	if s.journal == nil {
		return false, nil
	}
	blocked, err := s.journal.HasUnreconciled(ctx, s.cfg.Sheet.SpreadsheetID, state.ContactEmail, state.Step())
	if err != nil {
		return false, fmt.Errorf("failed to check send journal: %w", err)
	}
	return blocked, nil
}

// record journals a send attempt. A journal failure is logged but does not
// change the row outcome.
func (s *CampaignService) record(ctx context.Context, runID string, out model.RowOutcome, status model.JournalStatus) {
	if s.journal == nil {
		return
	}

	entry := &model.JournalEntry{
		RunID:         runID,
		SpreadsheetID: s.cfg.Sheet.SpreadsheetID,
		SheetRow:      out.SheetRow,
		ContactEmail:  strings.ToLower(out.ContactEmail),
		Step:          out.Step,
		Status:        status,
	}
	if out.MessageID != "" {
		id := out.MessageID
		entry.MessageID = &id
	}
	if out.Err != nil {
		msg := out.Err.Error()
		entry.Error = &msg
	}

	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error().
			Err(err).
			Int("sheet_row", out.SheetRow).
			Str("email", out.ContactEmail).
			Str("journal_status", string(status)).
			Msg("failed to record send in journal")
	}
}
