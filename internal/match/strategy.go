// Package match links ad records to shows by inferring a show id from
// campaign, ad set and ad names.
package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/parse"
)

// Strategy extracts a show id from search text. Strategies only read the
// index, so one index can serve concurrent matchers.
type Strategy interface {
	Name() string
	Match(text string, idx *model.ShowIndex) (string, bool)
}

// Strategy names, as recorded on matched records.
const (
	StrategyDirect   = "direct"
	StrategyLegacy   = "legacy"
	StrategyFallback = "fallback"
)

// DefaultStrategies returns direct, legacy and fallback in precedence order.
func DefaultStrategies() []Strategy {
	return []Strategy{Direct{}, Legacy{}, Fallback{}}
}

// The city token must not follow a letter and the date must not run into
// another digit, so "SALES-0927" never yields "LES-0927".
var directPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[^A-Z])([A-Z]{2,3}_\d{4}(?:_S\d+)?)(?:[^0-9]|$)`),
	regexp.MustCompile(`(?:^|[^A-Z])([A-Z]{2,3})-(\d{4})(?:-S(\d+))?(?:[^0-9]|$)`),
	regexp.MustCompile(`(?:^|[^A-Z])([A-Z]{2,3})\s*_\s*(\d{4})(?:\s*_\s*S(\d+))?(?:[^0-9]|$)`),
}

// Direct finds a show id written into the text, in the canonical
// CODE_MMDD[_Sn] form or a close punctuation variant.
type Direct struct{}

// Name implements Strategy.
func (Direct) Name() string { return StrategyDirect }

// Match implements Strategy. The index is not consulted.
func (Direct) Match(text string, _ *model.ShowIndex) (string, bool) {
	upper := strings.ToUpper(text)
	for i, re := range directPatterns {
		m := re.FindStringSubmatch(upper)
		if m == nil {
			continue
		}
		if i == 0 {
			return m[1], true
		}
		id := m[1] + "_" + m[2]
		if m[3] != "" {
			id += "_S" + m[3]
		}
		return id, true
	}
	return "", false
}

type legacyPattern struct {
	re              *regexp.Regexp
	city, date, seq int // submatch indexes, 0 when absent
}

var legacyPatterns = []legacyPattern{
	{re: regexp.MustCompile(`(?i)US-([A-Z]{2,})-Sales-(\d{4})(?:\s*-\s*(?:Interest|Target))?(?:\s*-\s*(\d+))?`), city: 1, date: 2, seq: 3},
	{re: regexp.MustCompile(`(?i)([A-Z]{2,})-Sales-(\d{4}).*?(?:Interest|Target)`), city: 1, date: 2},
	{re: regexp.MustCompile(`(?i)Tour[_\s]+([A-Z]+)[_\s]+(\d+)`), city: 1, seq: 2},
}

// Legacy recognises historical campaign naming conventions that carry a
// city, a show date and a sequence but no show id.
type Legacy struct{}

// Name implements Strategy.
func (Legacy) Name() string { return StrategyLegacy }

// Match implements Strategy.
func (Legacy) Match(text string, idx *model.ShowIndex) (string, bool) {
	if idx == nil {
		return "", false
	}
	for _, p := range legacyPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		city := m[p.city]
		var date string
		if p.date > 0 {
			date = m[p.date]
		}
		seq := 0
		if p.seq > 0 && m[p.seq] != "" {
			seq, _ = strconv.Atoi(m[p.seq])
		}
		if id, ok := resolveLegacy(idx, city, date, seq); ok {
			return id, true
		}
	}
	return "", false
}

// resolveLegacy tries, in order: the exact id with sequence, the id without
// sequence, any id for that code and date, the city (as code or name) with
// the sequence, and any sequence for the city.
func resolveLegacy(idx *model.ShowIndex, city, date string, seq int) (string, bool) {
	code := strings.ToUpper(city)
	key := parse.Key(city)

	if date != "" {
		base := code + "_" + date
		if seq > 0 {
			if id := fmt.Sprintf("%s_S%d", base, seq); idx.Has(id) {
				return id, true
			}
		}
		if idx.Has(base) {
			return base, true
		}
		for _, id := range idx.IDs() {
			if strings.HasPrefix(id, base+"_") {
				return id, true
			}
		}
	}

	want := seq
	if want <= 0 {
		want = 1
	}
	if id, ok := idx.CodeSequence(code, want); ok {
		return id, true
	}
	if id, ok := idx.Sequence(key, want); ok {
		return id, true
	}
	if id, ok := idx.LookupCode(code, want); ok {
		return id, true
	}
	return idx.Lookup(key, want)
}

var (
	hashSeqPattern = regexp.MustCompile(`#\s*(\d{1,2})`)
	showSeqPattern = regexp.MustCompile(`\b(?:show|s)\s*(\d{1,2})\b`)
	ordinals       = []struct {
		re  *regexp.Regexp
		seq int
	}{
		{regexp.MustCompile(`2nd|second`), 2},
		{regexp.MustCompile(`3rd|third`), 3},
		{regexp.MustCompile(`4th|fourth`), 4},
	}
)

// Fallback finds the longest indexed city name inside the text and picks
// the show by a sequence hint such as "#2", "show 2" or "second".
type Fallback struct{}

// Name implements Strategy.
func (Fallback) Name() string { return StrategyFallback }

// Match implements Strategy.
func (Fallback) Match(text string, idx *model.ShowIndex) (string, bool) {
	if idx == nil {
		return "", false
	}
	folded := strings.ToLower(parse.Fold(text))
	compact := parse.Key(text)
	if compact == "" {
		return "", false
	}

	best := ""
	for _, city := range idx.Cities() {
		if len(city) > len(best) && strings.Contains(compact, city) {
			best = city
		}
	}
	if best == "" {
		return "", false
	}
	return idx.Lookup(best, Sequence(folded))
}

// Sequence extracts a show sequence hint from lower-cased text, defaulting
// to 1.
func Sequence(text string) int {
	for _, re := range []*regexp.Regexp{hashSeqPattern, showSeqPattern} {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	for _, o := range ordinals {
		if o.re.MatchString(text) {
			return o.seq
		}
	}
	return 1
}
