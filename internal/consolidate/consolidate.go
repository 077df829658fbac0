// Package consolidate folds the snapshot time series of each show into one
// canonical record with derived sales metrics, and builds the ShowIndex used
// for ad matching.
package consolidate

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/parse"
)

// RollingWindow is the number of reports in the sales velocity window.
const RollingWindow = 7

var (
	cityPattern     = regexp.MustCompile(`\.([\p{L}\s]+)`)
	sequencePattern = regexp.MustCompile(`_S(\d+)$`)
	cityCodePattern = regexp.MustCompile(`^([A-Z]{2,3})_`)
	idDatePattern   = regexp.MustCompile(`_(\d{4})`)
)

// Result holds the consolidated shows in first-seen order and the index
// built from them.
type Result struct {
	Shows []model.ConsolidatedShow `json:"shows"`
	Index *model.ShowIndex         `json:"-"`
}

// ByID returns the shows keyed by show id.
func (r *Result) ByID() map[string]*model.ConsolidatedShow {
	out := make(map[string]*model.ConsolidatedShow, len(r.Shows))
	for i := range r.Shows {
		out[r.Shows[i].ShowID] = &r.Shows[i]
	}
	return out
}

// Consolidator derives per-show records. Now supplies "today" for
// days-to-show; it defaults to time.Now.
type Consolidator struct {
	Now func() time.Time
}

// New returns a Consolidator using the wall clock.
func New() *Consolidator {
	return &Consolidator{Now: time.Now}
}

func (c *Consolidator) today() time.Time {
	now := time.Now
	if c != nil && c.Now != nil {
		now = c.Now
	}
	return truncateDay(now())
}

// Consolidate groups snapshots by show id and derives one ConsolidatedShow
// per group.
func (c *Consolidator) Consolidate(snaps []model.ShowSnapshot) *Result {
	var order []string
	groups := make(map[string][]model.ShowSnapshot)
	for _, s := range snaps {
		if _, ok := groups[s.ShowID]; !ok {
			order = append(order, s.ShowID)
		}
		groups[s.ShowID] = append(groups[s.ShowID], s)
	}

	today := c.today()
	res := &Result{
		Shows: make([]model.ConsolidatedShow, 0, len(order)),
		Index: model.NewShowIndex(),
	}
	for _, id := range order {
		show := derive(orderSeries(groups[id]), today)
		if !res.Index.Add(show.NormalizedCity, show.CityCode, show.ShowSequence, show.ShowID) {
			zap.L().Warn("consolidate: city and sequence already indexed, keeping first show",
				zap.String("show_id", show.ShowID),
				zap.String("city", show.NormalizedCity),
				zap.Int("sequence", show.ShowSequence),
			)
		}
		res.Shows = append(res.Shows, show)
	}
	return res
}

// orderSeries sorts by report date with unknown dates last, then by source
// row.
func orderSeries(series []model.ShowSnapshot) []model.ShowSnapshot {
	out := append([]model.ShowSnapshot(nil), series...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ReportDate, out[j].ReportDate
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].SourceRow < out[j].SourceRow
	})
	return out
}

func derive(series []model.ShowSnapshot, today time.Time) model.ConsolidatedShow {
	latest := series[len(series)-1]
	show := model.ConsolidatedShow{
		ShowSnapshot:  latest,
		SnapshotCount: len(series),
		History:       series,
	}

	capacity := model.Float(latest.Capacity)
	sold := model.Float(latest.TotalSold)
	remaining := model.Float(latest.Remaining)

	if capacity > 0 {
		show.OccupancyRate = sold / capacity * 100
	}
	if sold > 0 {
		show.AvgTicketPrice = model.Float(latest.SalesToDate) / sold
	}
	show.PotentialRevenue = capacity * show.AvgTicketPrice
	show.LostRevenue = (capacity - sold) * show.AvgTicketPrice
	show.TotalHolds = latest.TotalHolds()
	show.EffectiveCapacity = capacity - float64(show.TotalHolds)
	show.PerformanceCategory = model.CategorizeOccupancy(show.OccupancyRate)

	show.DailySalesTarget = remaining
	if latest.ShowDate != nil {
		days := DaysBetween(today, *latest.ShowDate)
		if days < 0 {
			days = 0
		}
		show.DaysToShow = &days
		if days > 0 {
			show.DailySalesTarget = remaining / float64(days)
		}
	}

	show.SalesLast7Days, show.AvgSalesLast7Days = rolling(series)
	identify(&show)
	return show
}

// rolling sums today_sold over the last RollingWindow reports of the full
// ordered series. Unknown values count as zero.
func rolling(series []model.ShowSnapshot) (sum, avg float64) {
	start := len(series) - RollingWindow
	if start < 0 {
		start = 0
	}
	window := series[start:]
	for _, s := range window {
		sum += model.Float(s.TodaySold)
	}
	return sum, sum / float64(len(window))
}

func identify(show *model.ConsolidatedShow) {
	if m := cityPattern.FindStringSubmatch(show.ShowName); m != nil {
		show.City = strings.TrimSpace(m[1])
	}
	show.NormalizedCity = parse.Key(show.City)

	show.ShowSequence = 1
	if m := sequencePattern.FindStringSubmatch(show.ShowID); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			show.ShowSequence = n
			show.IsMultiShow = true
		}
	}
	if m := cityCodePattern.FindStringSubmatch(show.ShowID); m != nil {
		show.CityCode = m[1]
	}
	if m := idDatePattern.FindStringSubmatch(show.ShowID); m != nil {
		show.ShowDateFromID = m[1]
	}
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(truncateDay(b).Sub(truncateDay(a)).Hours() / 24))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
