// Package timeseries reads USBL and sensor CSV files and normalises their timestamps to UTC.
package timeseries

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultCommentPrefix marks leading non-data lines in sensor exports.
const DefaultCommentPrefix = "#"

// ErrMissingColumn is returned when a required column is not in the header
var ErrMissingColumn = errors.New("missing required column")

// Table is a raw CSV table: a header and string cells.
type Table struct {
	Source       string
	Header       []string
	Rows         [][]string
	SkippedLines int
}

// Index returns the position of a column in Header, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the value of column col in row, or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// ReadTable skips leading lines starting with commentPrefix, then parses the rest as CSV with a header row.
// An empty commentPrefix disables skipping.
func ReadTable(r io.Reader, commentPrefix string) (*Table, error) {
	br := bufio.NewReader(r)

	skipped := 0
	if commentPrefix != "" {
		for {
			peek, err := br.Peek(len(commentPrefix))
			if err != nil || string(peek) != commentPrefix {
				break
			}
			if _, err := br.ReadString('\n'); err != nil {
				if errors.Is(err, io.EOF) {
					skipped++
					break
				}
				return nil, fmt.Errorf("reading comment lines: %w", err)
			}
			skipped++
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{SkippedLines: skipped}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	return &Table{Header: header, Rows: rows, SkippedLines: skipped}, nil
}

// ReadFile opens path and reads it with ReadTable.
func ReadFile(path, commentPrefix string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	tbl, err := ReadTable(f, commentPrefix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tbl.Source = path
	return tbl, nil
}
