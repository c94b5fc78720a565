package timeseries

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnparseableTimestamp is wrapped by ParseError when no layout matches
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

// Layouts without a fractional part still accept one of any precision when parsing.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05-07",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02T15:04:05",
	"2006-01-02",
}

// ParseError reports a timestamp or column problem with enough context to show the operator.
type ParseError struct {
	Source string
	Row    int // 1-based data row, 0 when not row-specific
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "%s: ", e.Field)
	}
	b.WriteString(e.Err.Error())
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseTimestamp parses one ISO-8601-style timestamp and returns it in UTC.
// Each value is matched on its own, so a column may mix layouts and precisions.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrUnparseableTimestamp
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, ErrUnparseableTimestamp
}

// Normalize parses the tsField column of every row into UTC instants.
// Any unparseable value fails the whole table; rows are never dropped.
func Normalize(tbl *Table, tsField string) ([]time.Time, error) {
	col := tbl.Index(tsField)
	if col < 0 {
		return nil, &ParseError{Source: tbl.Source, Field: tsField, Err: ErrMissingColumn}
	}

	out := make([]time.Time, len(tbl.Rows))
	for i := range tbl.Rows {
		raw := tbl.Cell(i, col)
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return nil, &ParseError{Source: tbl.Source, Row: i + 1, Field: tsField, Value: raw, Err: err}
		}
		out[i] = ts
	}
	return out, nil
}
