// Package sheet turns the ticket sales spreadsheet export into typed show
// snapshots.
package sheet

import (
	"regexp"
	"strings"

	"github.com/sells-group/showfunnel/internal/parse"
)

// RowKind is the classification of one spreadsheet row.
type RowKind string

const (
	RowMonthHeader   RowKind = "month_header"
	RowMonthAsterisk RowKind = "month_asterisk"
	RowShowData      RowKind = "show_data"
	RowEndRow        RowKind = "end_row"
	RowSummaryLine   RowKind = "summary_line"
	RowHeader        RowKind = "header"
	RowUnknown       RowKind = "unknown"
)

// RowKinds lists every classification in precedence order.
func RowKinds() []RowKind {
	return []RowKind{RowMonthHeader, RowMonthAsterisk, RowShowData, RowEndRow, RowSummaryLine, RowHeader, RowUnknown}
}

const endRowMarker = "endRow"

// fallbackMinCells is the width above which a row with a date in its second
// cell is treated as show data even without a well-formed show id.
const fallbackMinCells = 10

var (
	showIDPattern        = regexp.MustCompile(`^[A-Z]{2,3}_\d{4}(_S\d+)?$`)
	summaryPattern       = regexp.MustCompile(`^\d+\s*\(\+\d+\)\s*\d+`)
	monthAsteriskPattern = regexp.MustCompile(`^\*(January|February|March|April|May|June|July|August|September|October|November|December)\*$`)

	monthNames = map[string]struct{}{
		"January": {}, "February": {}, "March": {}, "April": {},
		"May": {}, "June": {}, "July": {}, "August": {},
		"September": {}, "October": {}, "November": {}, "December": {},
	}

	headerMarkers = []string{"show id", "show date"}
)

// IsShowID reports whether s is a well-formed show identifier.
func IsShowID(s string) bool {
	return showIDPattern.MatchString(s)
}

// Classify assigns exactly one RowKind to a row. It is state-free; the
// first matching rule wins.
func Classify(row []string) RowKind {
	first := ""
	if len(row) > 0 {
		first = strings.TrimSpace(row[0])
	}

	if _, ok := monthNames[first]; ok {
		return RowMonthHeader
	}
	switch {
	case monthAsteriskPattern.MatchString(first):
		return RowMonthAsterisk
	case showIDPattern.MatchString(first):
		return RowShowData
	case first == endRowMarker:
		return RowEndRow
	case summaryPattern.MatchString(first):
		return RowSummaryLine
	case isHeader(row):
		return RowHeader
	case len(row) > fallbackMinCells && parse.LooksLikeDate(row[1]):
		return RowShowData
	}
	return RowUnknown
}

func isHeader(row []string) bool {
	for i := 0; i < len(row) && i < 3; i++ {
		cell := strings.ToLower(row[i])
		for _, m := range headerMarkers {
			if strings.Contains(cell, m) {
				return true
			}
		}
	}
	return false
}

// ScanState is the context carried from row to row during a parse.
type ScanState struct {
	Month string // last month header seen, for provenance only
	Done  bool   // an end marker was reached
}

// Step classifies row and returns the state to carry into the next row.
func Step(state ScanState, row []string) (RowKind, ScanState) {
	kind := Classify(row)
	switch kind {
	case RowMonthHeader:
		state.Month = strings.TrimSpace(row[0])
	case RowEndRow:
		state.Done = true
	}
	return kind, state
}
