package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/dripsheet/dripsheet/internal/auth"
	"github.com/dripsheet/dripsheet/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "sheet-1", "Sheet1", "USER_ENTERED",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestReadAll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/"), r.URL.Path)
		assert.Equal(t, "UNFORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		assert.Equal(t, "FORMATTED_STRING", r.URL.Query().Get("dateTimeRenderOption"))
		writeJSON(w, http.StatusOK, `{
			"range": "Sheet1!A1:E3",
			"values": [
				["Contact email", "Contact Name", "Language", "Emails Sent", "Approached (Date)"],
				["a@x.com", "Ana", "EN"],
				["b@x.com", "Bo", "LV", 2, "2024-01-05"],
				["c@x.com", "Cy", "EN", 1000000.0, ""]
			]
		}`)
	})

	tbl, err := c.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact email", "Contact Name", "Language", "Emails Sent", "Approached (Date)"}, tbl.Headers)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []string{"a@x.com", "Ana", "EN"}, tbl.Rows[0])
	assert.Equal(t, "2", tbl.Rows[1][3])
	assert.Equal(t, "1000000", tbl.Rows[2][3], "large counts are not rendered in exponent form")
}

func TestReadAllEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"range": "Sheet1!A1:Z1000"}`)
	})

	tbl, err := c.ReadAll(context.Background())
	require.NoError(t, err)
	assert.True(t, tbl.IsEmpty())
	assert.Empty(t, tbl.Rows)
}

func TestReadAllRetriesRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusTooManyRequests, `{"error":{"code":429,"message":"slow down"}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"values":[["Contact email"]]}`)
	})

	tbl, err := c.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact email"}, tbl.Headers)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestReadAllUnauthorizedIsAuthFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":{"code":401,"message":"bad token"}}`)
	})

	_, err := c.ReadAll(context.Background())
	assert.ErrorIs(t, err, auth.ErrAuthFailure)
}

func TestWriteCellsSingleBatch(t *testing.T) {
	var calls int32
	var got struct {
		ValueInputOption string `json:"valueInputOption"`
		Data             []struct {
			Range  string          `json:"range"`
			Values [][]interface{} `json:"values"`
		} `json:"data"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v4/spreadsheets/sheet-1/values:batchUpdate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"spreadsheetId":"sheet-1","totalUpdatedCells":2}`)
	})

	n, err := c.WriteCells(context.Background(), []model.CellUpdate{
		{Range: "E2:E2", Value: "2024-03-01"},
		{Range: "D2:D2", Value: "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	assert.Equal(t, "USER_ENTERED", got.ValueInputOption)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "'Sheet1'!E2:E2", got.Data[0].Range)
	assert.Equal(t, [][]interface{}{{"2024-03-01"}}, got.Data[0].Values)
	assert.Equal(t, "'Sheet1'!D2:D2", got.Data[1].Range)
}

func TestWriteCellsDoesNotRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusTooManyRequests, `{"error":{"code":429,"message":"slow down"}}`)
	})

	_, err := c.WriteCells(context.Background(), []model.CellUpdate{{Range: "D2:D2", Value: "1"}})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestWriteCellsNothingToDo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	n, err := c.WriteCells(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQuoteTab(t *testing.T) {
	assert.Equal(t, "'Sheet1'", QuoteTab("Sheet1"))
	assert.Equal(t, "'Bob''s leads'", QuoteTab("Bob's leads"))
}
