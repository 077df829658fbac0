package match

import (
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/model"
)

// Result is the outcome of matching one search text.
type Result struct {
	ShowID     string                `json:"show_id,omitempty"`
	Confidence model.MatchConfidence `json:"confidence"`
	Strategy   string                `json:"strategy,omitempty"`
}

// Stats summarizes a MatchAll pass.
type Stats struct {
	Total      int            `json:"total"`
	High       int            `json:"high"`
	Low        int            `json:"low"`
	None       int            `json:"none"`
	ByStrategy map[string]int `json:"by_strategy"`
}

// Matched returns the number of records that received a show id.
func (s Stats) Matched() int { return s.High + s.Low }

// Matcher applies strategies in order; the first hit wins.
type Matcher struct {
	index      *model.ShowIndex
	strategies []Strategy
}

// New creates a Matcher over idx. With no strategies the defaults are used.
func New(idx *model.ShowIndex, strategies ...Strategy) *Matcher {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Matcher{index: idx, strategies: strategies}
}

// Match resolves one search text. Confidence is high only for the direct
// strategy.
func (m *Matcher) Match(text string) Result {
	if text == "" {
		return Result{Confidence: model.ConfidenceNone}
	}
	for _, s := range m.strategies {
		id, ok := s.Match(text, m.index)
		if !ok || id == "" {
			continue
		}
		conf := model.ConfidenceLow
		if s.Name() == StrategyDirect {
			conf = model.ConfidenceHigh
		}
		return Result{ShowID: id, Confidence: conf, Strategy: s.Name()}
	}
	return Result{Confidence: model.ConfidenceNone}
}

// MatchRecord annotates rec with its match.
func (m *Matcher) MatchRecord(rec *model.AdRecord) Result {
	res := m.Match(rec.SearchText())
	rec.MatchedShowID = res.ShowID
	rec.MatchConfidence = res.Confidence
	rec.MatchStrategy = res.Strategy
	return res
}

// MatchAll annotates records in place.
func (m *Matcher) MatchAll(records []model.AdRecord) Stats {
	stats := Stats{ByStrategy: make(map[string]int)}
	for i := range records {
		res := m.MatchRecord(&records[i])
		stats.Total++
		switch res.Confidence {
		case model.ConfidenceHigh:
			stats.High++
		case model.ConfidenceLow:
			stats.Low++
		default:
			stats.None++
		}
		if res.Strategy != "" {
			stats.ByStrategy[res.Strategy]++
		}
		if res.ShowID != "" && m.index != nil && !m.index.Has(res.ShowID) {
			zap.L().Debug("match: show id not in sheet",
				zap.String("show_id", res.ShowID),
				zap.String("strategy", res.Strategy),
			)
		}
	}
	return stats
}
