package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row parsing errors
var (
	ErrMissingColumn        = errors.New("required column missing from header row")
	ErrMissingRequiredField = errors.New("required field is empty")
	ErrInvalidLanguage      = errors.New("unsupported language")
	ErrMalformedState       = errors.New("malformed campaign state")
)

// Language selects the template variant for a contact.
type Language string

const (
	LanguageEN Language = "EN"
	LanguageLV Language = "LV"
)

// ParseLanguage matches s case-insensitively against the supported languages.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToUpper(strings.TrimSpace(s))) {
	case LanguageEN:
		return LanguageEN, nil
	case LanguageLV:
		return LanguageLV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, s)
}

// Columns holds the header names of the campaign columns.
type Columns struct {
	ContactEmail   string `mapstructure:"contact_email"`
	ContactName    string `mapstructure:"contact_name"`
	Language       string `mapstructure:"language"`
	EmailsSent     string `mapstructure:"emails_sent"`
	ApproachedDate string `mapstructure:"approached_date"`
}

// DefaultColumns returns the header names used by the campaign sheet template.
func DefaultColumns() Columns {
	return Columns{
		ContactEmail:   "Contact email",
		ContactName:    "Contact Name",
		Language:       "Language",
		EmailsSent:     "Emails Sent",
		ApproachedDate: "Approached (Date)",
	}
}

// HeaderBinding is the position of every campaign column in a loaded table.
type HeaderBinding struct {
	ContactEmail   int
	ContactName    int
	Language       int
	EmailsSent     int
	ApproachedDate int
}

// BindHeaders locates each campaign column in headers. A column that is not
// present fails the whole table.
func BindHeaders(headers []string, cols Columns) (HeaderBinding, error) {
	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if _, ok := pos[h]; !ok {
			pos[h] = i
		}
	}

	var missing []string
	find := func(name string) int {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	b := HeaderBinding{
		ContactEmail:   find(cols.ContactEmail),
		ContactName:    find(cols.ContactName),
		Language:       find(cols.Language),
		EmailsSent:     find(cols.EmailsSent),
		ApproachedDate: find(cols.ApproachedDate),
	}
	if len(missing) > 0 {
		return HeaderBinding{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return b, nil
}

// RowState is the campaign-relevant view of one sheet row.
type RowState struct {
	Row            int      `json:"row"`
	ContactEmail   string   `json:"contactEmail"`
	ContactName    string   `json:"contactName"`
	Language       Language `json:"language"`
	EmailsSent     int      `json:"emailsSent"`
	ApproachedDate string   `json:"approachedDate,omitempty"`
}

// HasApproachedDate reports whether the first-contact date is already set.
func (s RowState) HasApproachedDate() bool {
	return s.ApproachedDate != ""
}

// Step is the zero-based index of the next template to send.
func (s RowState) Step() int {
	return s.EmailsSent
}

// ParseRow reads a typed RowState out of raw cells.
//
// A malformed "Emails Sent" value is returned as ErrMalformedState together
// with an otherwise complete state whose EmailsSent is 0, so callers can
// choose to continue leniently.
func ParseRow(b HeaderBinding, rowIndex int, cells []string) (RowState, error) {
	get := func(i int) string {
		return strings.TrimSpace(Cell(cells, i))
	}

	state := RowState{
		Row:            rowIndex,
		ContactEmail:   get(b.ContactEmail),
		ContactName:    get(b.ContactName),
		ApproachedDate: get(b.ApproachedDate),
	}
	if state.ContactEmail == "" {
		return state, fmt.Errorf("%w: contact email", ErrMissingRequiredField)
	}

	lang, err := ParseLanguage(get(b.Language))
	if err != nil {
		return state, err
	}
	state.Language = lang

	sent, err := parseEmailsSent(get(b.EmailsSent))
	if err != nil {
		return state, err
	}
	state.EmailsSent = sent
	return state, nil
}

func parseEmailsSent(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return n, nil
	}
	// A number-formatted cell may read as "1.00"; only whole values count.
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > math.MaxInt32 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: emails sent %q", ErrMalformedState, raw)
	}
	return int(f), nil
}
