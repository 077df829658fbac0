package parse

import (
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// Date parses an ISO calendar date (YYYY-MM-DD). A trailing time component
// separated by 'T' or a space is ignored. Any other layout yields nil; dates
// are never guessed from ambiguous day/month orderings.
func Date(text string) *time.Time {
	s := strings.TrimSpace(text)
	if len(s) < len(isoDate) {
		return nil
	}
	if len(s) > len(isoDate) && s[len(isoDate)] != 'T' && s[len(isoDate)] != ' ' {
		return nil
	}
	t, err := time.Parse(isoDate, s[:len(isoDate)])
	if err != nil {
		return nil
	}
	return &t
}

// LooksLikeDate reports whether text parses as a Date.
func LooksLikeDate(text string) bool {
	return Date(text) != nil
}
