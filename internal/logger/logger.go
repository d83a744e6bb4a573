package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dripsheet/dripsheet/internal/model"
)

// Logger wraps zerolog.Logger with application-specific methods
type Logger struct {
	zerolog.Logger
}

// New creates a new Logger writing to stderr
func New(level string, format string) *Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter creates a Logger writing to w
func NewWithWriter(w io.Writer, level string, format string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger

	if format == "text" || format == "console" {
		// Human-readable output for an operator at a terminal
		output := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
		logger = zerolog.New(output).Level(lvl).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(w).Level(lvl).With().Timestamp().Caller().Logger()
	}

	return &Logger{Logger: logger}
}

// Nop returns a Logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithComponent returns a new logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// WithRun returns a new logger with the run ID and spreadsheet attached
func (l *Logger) WithRun(runID, spreadsheetID string) *Logger {
	return &Logger{
		Logger: l.With().Str("run_id", runID).Str("spreadsheet_id", spreadsheetID).Logger(),
	}
}

// WithRow returns a new logger with the sheet row attached
func (l *Logger) WithRow(rowIndex int) *Logger {
	return &Logger{
		Logger: l.With().Int("sheet_row", model.SheetRow(rowIndex)).Logger(),
	}
}

// RowOutcome logs the final state of a processed row. Unreconciled rows are
// logged at error level so they stand out in the run output.
func (l *Logger) RowOutcome(o model.RowOutcome) {
	event := l.Info()
	switch {
	case o.Unreconciled:
		event = l.Error()
	case o.Status == model.RowStatusFailed:
		event = l.Warn()
	}

	event = event.
		Int("sheet_row", o.SheetRow).
		Str("status", string(o.Status)).
		Int("step", o.Step)
	if o.ContactEmail != "" {
		event = event.Str("email", o.ContactEmail)
	}
	if o.MessageID != "" {
		event = event.Str("message_id", o.MessageID)
	}
	if o.Delta != nil {
		event = event.Int("emails_sent", o.Delta.EmailsSent)
		if o.Delta.SetApproachedDate != "" {
			event = event.Str("approached_date", o.Delta.SetApproachedDate)
		}
	}
	if o.Unreconciled {
		event = event.Bool("unreconciled", true)
	}
	if o.Err != nil {
		event = event.Err(o.Err)
	}
	event.Msg("row processed")
}

// RunSummary logs the counters of a finished run
func (l *Logger) RunSummary(r model.RunReport) {
	event := l.Info()
	if r.Unreconciled > 0 {
		event = l.Error()
	}
	event.
		Str("run_id", r.RunID).
		Bool("dry_run", r.DryRun).
		Int("sent", r.Sent).
		Int("skipped", r.Skipped).
		Int("failed", r.Failed).
		Int("unreconciled", r.Unreconciled).
		Bool("limit_reached", r.LimitReached).
		Dur("duration", r.FinishedAt.Sub(r.StartedAt)).
		Msg("run finished")
}
