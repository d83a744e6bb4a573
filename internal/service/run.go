package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dripsheet/dripsheet/internal/model"
	"github.com/dripsheet/dripsheet/internal/template"
)

// RunOptions narrows a run
type RunOptions struct {
	// Rows are zero-based data row indices; empty means every row.
	Rows []int
	// Limit overrides campaign.email_limit when positive.
	Limit int
}

func (s *CampaignService) limit(opts RunOptions) int {
	if opts.Limit > 0 {
		return opts.Limit
	}
	return s.cfg.Campaign.EmailLimit
}

// rowsToProcess lists the rows to visit in order. Repeated indices are
// dropped: every row is judged against the same snapshot, so a second visit
// would send the same step again.
func rowsToProcess(opts RunOptions, table model.Table) []int {
	if len(opts.Rows) > 0 {
		seen := make(map[int]bool, len(opts.Rows))
		rows := make([]int, 0, len(opts.Rows))
		for _, i := range opts.Rows {
			if !seen[i] {
				seen[i] = true
				rows = append(rows, i)
			}
		}
		return rows
	}
	rows := make([]int, len(table.Rows))
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// Run processes the requested rows in order, sending at most one email per
// row. Loading the sheet and binding its headers must succeed before any row
// is touched; after that, row errors are recorded in the report and the run
// continues. A cancelled context stops the run before the next row. With a
// locker configured the lock is refreshed after every row, and a lost lock
// stops the run.
func (s *CampaignService) Run(ctx context.Context, opts RunOptions) (model.RunReport, error) {
	report := model.RunReport{
		RunID:     uuid.New().String(),
		StartedAt: s.now(),
	}
	log := s.log.WithRun(report.RunID, s.cfg.Sheet.SpreadsheetID)

	var lock RunLock
	if s.locker != nil {
		var err error
		lock, err = s.locker.Acquire(ctx, s.cfg.Sheet.SpreadsheetID)
		if err != nil {
			return report, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("failed to release run lock")
			}
		}()
	}

	snap, err := s.Load(ctx)
	if err != nil {
		return report, err
	}

	limit := s.limit(opts)
	log.Info().
		Int("rows", len(snap.Table.Rows)).
		Int("email_limit", limit).
		Msg("starting run")

	for _, rowIndex := range rowsToProcess(opts, snap.Table) {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = s.now()
			return report, fmt.Errorf("run interrupted: %w", err)
		}
		if limit > 0 && report.Sent >= limit {
			report.LimitReached = true
			break
		}

		out := s.ProcessRow(ctx, report.RunID, snap, rowIndex, s.now())
		log.RowOutcome(out)
		report.Add(out)

		if lock != nil {
			if err := lock.Refresh(context.WithoutCancel(ctx)); err != nil {
				report.FinishedAt = s.now()
				log.Error().Err(err).Msg("stopping run")
				return report, err
			}
		}
	}

	report.FinishedAt = s.now()
	log.RunSummary(report)
	return report, nil
}

// Plan reports what Run would do without sending mail or writing the sheet.
// Rows past the email limit are not listed.
func (s *CampaignService) Plan(ctx context.Context, opts RunOptions) (model.RunReport, error) {
	report := model.RunReport{
		RunID:     uuid.New().String(),
		StartedAt: s.now(),
		DryRun:    true,
	}

	snap, err := s.Load(ctx)
	if err != nil {
		return report, err
	}

	limit := s.limit(opts)
	today := s.now()
	for _, rowIndex := range rowsToProcess(opts, snap.Table) {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("plan interrupted: %w", err)
		}
		if limit > 0 && report.Ready >= limit {
			report.LimitReached = true
			break
		}
		report.Add(s.planRow(ctx, snap, rowIndex, today))
	}

	report.FinishedAt = s.now()
	return report, nil
}

func (s *CampaignService) planRow(ctx context.Context, snap *Snapshot, rowIndex int, today time.Time) model.RowOutcome {
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

	if _, err := s.PrepareSend(ctx, state); err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			return skipped(out, err)
		}
		out.Status = model.RowStatusFailed
		out.Err = err
		return out
	}

	delta := s.ComputeDelta(state, today)
	if _, err := delta.Cells(rowIndex, snap.Binding); err != nil {
		out.Status = model.RowStatusFailed
		out.Err = err
		return out
	}
	out.Delta = &delta
	out.Status = model.RowStatusReady
	return out
}
