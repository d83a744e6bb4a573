package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripsheet/dripsheet/internal/model"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestRowOutcomeUnreconciledIsError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json").WithRun("run-1", "sheet-1")

	log.RowOutcome(model.RowOutcome{
		Row:          0,
		SheetRow:     2,
		ContactEmail: "a@x.com",
		Status:       model.RowStatusSent,
		MessageID:    "m-1",
		Delta:        &model.StateDelta{SetApproachedDate: "2024-03-01", EmailsSent: 1},
		Unreconciled: true,
		Err:          errors.New("sheet write failed"),
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	e := lines[0]
	assert.Equal(t, "error", e["level"])
	assert.Equal(t, "run-1", e["run_id"])
	assert.Equal(t, "sheet-1", e["spreadsheet_id"])
	assert.Equal(t, "a@x.com", e["email"])
	assert.Equal(t, "m-1", e["message_id"])
	assert.Equal(t, true, e["unreconciled"])
	assert.Equal(t, "2024-03-01", e["approached_date"])
	assert.EqualValues(t, 1, e["emails_sent"])
}

func TestRowOutcomeLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "json")

	log.RowOutcome(model.RowOutcome{SheetRow: 2, Status: model.RowStatusUpdated})
	log.RowOutcome(model.RowOutcome{SheetRow: 3, Status: model.RowStatusFailed, Err: errors.New("boom")})
	log.RowOutcome(model.RowOutcome{SheetRow: 4, Status: model.RowStatusSkipped})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "info", lines[2]["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestRunSummary(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")
	log.RunSummary(model.RunReport{RunID: "r", Sent: 2, Skipped: 1})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run finished", lines[0]["message"])
	assert.EqualValues(t, 2, lines[0]["sent"])
}
