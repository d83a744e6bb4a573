package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var campaignHeaders = []string{"Contact email", "Contact Name", "Language", "Emails Sent", "Approached (Date)"}

func mustBind(t *testing.T) HeaderBinding {
	t.Helper()
	b, err := BindHeaders(campaignHeaders, DefaultColumns())
	require.NoError(t, err)
	return b
}

func TestBindHeaders(t *testing.T) {
	b := mustBind(t)
	assert.Equal(t, HeaderBinding{
		ContactEmail:   0,
		ContactName:    1,
		Language:       2,
		EmailsSent:     3,
		ApproachedDate: 4,
	}, b)
}

func TestBindHeadersReordered(t *testing.T) {
	headers := []string{"Notes", "Approached (Date)", "Language", "Contact email", "Emails Sent", "Contact Name"}
	b, err := BindHeaders(headers, DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, 3, b.ContactEmail)
	assert.Equal(t, 1, b.ApproachedDate)
	assert.Equal(t, 5, b.ContactName)
}

func TestBindHeadersMissingColumn(t *testing.T) {
	_, err := BindHeaders([]string{"Contact email", "Language"}, DefaultColumns())
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "Emails Sent")
	assert.Contains(t, err.Error(), "Approached (Date)")
}

func TestParseRow(t *testing.T) {
	b := mustBind(t)

	tests := []struct {
		name    string
		cells   []string
		want    RowState
		wantErr error
	}{
		{
			name:  "fresh contact",
			cells: []string{"a@x.com", "Ana", "EN", "", ""},
			want:  RowState{Row: 3, ContactEmail: "a@x.com", ContactName: "Ana", Language: LanguageEN},
		},
		{
			name:  "short row",
			cells: []string{"a@x.com", "", "lv"},
			want:  RowState{Row: 3, ContactEmail: "a@x.com", Language: LanguageLV},
		},
		{
			name:  "in progress",
			cells: []string{" b@x.com ", "Bo", "LV", "2", "2024-01-05"},
			want: RowState{
				Row: 3, ContactEmail: "b@x.com", ContactName: "Bo", Language: LanguageLV,
				EmailsSent: 2, ApproachedDate: "2024-01-05",
			},
		},
		{
			name:    "missing email",
			cells:   []string{"", "Ana", "EN"},
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "unknown language",
			cells:   []string{"a@x.com", "Ana", "DE"},
			wantErr: ErrInvalidLanguage,
		},
		{
			name:    "empty language",
			cells:   []string{"a@x.com", "Ana", ""},
			wantErr: ErrInvalidLanguage,
		},
		{
			name:    "non-numeric count",
			cells:   []string{"a@x.com", "Ana", "EN", "two"},
			wantErr: ErrMalformedState,
		},
		{
			name:  "count with decimal formatting",
			cells: []string{"a@x.com", "Ana", "EN", "1.00", "2024-01-05"},
			want: RowState{
				Row: 3, ContactEmail: "a@x.com", ContactName: "Ana", Language: LanguageEN,
				EmailsSent: 1, ApproachedDate: "2024-01-05",
			},
		},
		{
			name:    "fractional count",
			cells:   []string{"a@x.com", "Ana", "EN", "1.5"},
			wantErr: ErrMalformedState,
		},
		{
			name:    "negative count",
			cells:   []string{"a@x.com", "Ana", "EN", "-1"},
			wantErr: ErrMalformedState,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRow(b, 3, tt.cells)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRowMalformedStateKeepsRestOfRow(t *testing.T) {
	got, err := ParseRow(mustBind(t), 0, []string{"a@x.com", "Ana", "EN", "n/a", "2024-02-01"})
	require.ErrorIs(t, err, ErrMalformedState)
	assert.Equal(t, "a@x.com", got.ContactEmail)
	assert.Equal(t, LanguageEN, got.Language)
	assert.Equal(t, 0, got.EmailsSent)
	assert.True(t, got.HasApproachedDate())
}
