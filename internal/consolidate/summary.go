package consolidate

import (
	"sort"
	"time"

	"github.com/sells-group/showfunnel/internal/model"
)

// soldOutThreshold is the occupancy at which a show counts as sold out in
// portfolio totals.
const soldOutThreshold = 99.0

// PortfolioSummary aggregates the latest state of every show.
type PortfolioSummary struct {
	TotalShows          int                               `json:"total_shows"`
	TotalCapacity       float64                           `json:"total_capacity"`
	TotalSold           float64                           `json:"total_sold"`
	TotalRevenue        float64                           `json:"total_revenue"`
	LostRevenue         float64                           `json:"lost_revenue"`
	AvgOccupancy        float64                           `json:"avg_occupancy"`
	AvgTicketPrice      float64                           `json:"avg_ticket_price"`
	Cities              int                               `json:"cities_count"`
	SoldOutShows        int                               `json:"sold_out_shows"`
	AvgDailySalesTarget float64                           `json:"avg_daily_sales_target"`
	AvgSalesLast7Days   float64                           `json:"avg_sales_last_7_days"`
	ByCategory          map[model.PerformanceCategory]int `json:"by_category"`
}

// Summarize rolls shows up into portfolio totals. An empty input yields a
// zero summary.
func Summarize(shows []model.ConsolidatedShow) PortfolioSummary {
	sum := PortfolioSummary{ByCategory: make(map[model.PerformanceCategory]int)}
	if len(shows) == 0 {
		return sum
	}

	cities := make(map[string]struct{})
	var occupancy, price, target, velocity float64
	for _, s := range shows {
		sum.TotalShows++
		sum.TotalCapacity += model.Float(s.Capacity)
		sum.TotalSold += model.Float(s.TotalSold)
		sum.TotalRevenue += model.Float(s.SalesToDate)
		sum.LostRevenue += s.LostRevenue
		sum.ByCategory[s.PerformanceCategory]++

		occupancy += s.OccupancyRate
		price += s.AvgTicketPrice
		target += s.DailySalesTarget
		velocity += s.AvgSalesLast7Days

		if s.OccupancyRate >= soldOutThreshold {
			sum.SoldOutShows++
		}
		if s.City != "" {
			cities[s.City] = struct{}{}
		}
	}

	n := float64(sum.TotalShows)
	sum.AvgOccupancy = occupancy / n
	sum.AvgTicketPrice = price / n
	sum.AvgDailySalesTarget = target / n
	sum.AvgSalesLast7Days = velocity / n
	sum.Cities = len(cities)
	return sum
}

// TimelinePoint is one day of ticket sales, for the portfolio or one show.
type TimelinePoint struct {
	Date            time.Time `json:"date"`
	CumulativeTotal float64   `json:"cumulative_total"`
	DailySold       float64   `json:"daily_sold"`
	OfficialTotal   float64   `json:"official_total"`
}

type dayTotals struct {
	official float64
	daily    float64
}

// Timeline builds a daily sales series from each show's report history,
// reindexed to every day from the first report through today.
//
// Daily sold per show is the larger of the reported today_sold and the
// positive change in total_sold. The cumulative total follows the official
// total where one was reported and otherwise carries the running projection
// forward; it never decreases.
func Timeline(shows []model.ConsolidatedShow, today time.Time) []TimelinePoint {
	byDay := make(map[time.Time]*dayTotals)
	for _, s := range shows {
		addShowDays(byDay, s.History)
	}
	if len(byDay) == 0 {
		return nil
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	start := days[0]
	end := truncateDay(today)
	if end.Before(start) {
		end = start
	}

	var points []TimelinePoint
	running := 0.0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		var official, daily float64
		if t, ok := byDay[d]; ok {
			official, daily = t.official, t.daily
		}
		projected := running + daily
		if official > 0 {
			running = max(official, projected)
		} else {
			running = max(projected, running)
		}
		points = append(points, TimelinePoint{
			Date:            d,
			CumulativeTotal: running,
			DailySold:       daily,
			OfficialTotal:   official,
		})
	}
	return points
}

// ShowTimeline is Timeline for a single show.
func ShowTimeline(show model.ConsolidatedShow, today time.Time) []TimelinePoint {
	return Timeline([]model.ConsolidatedShow{show}, today)
}

// addShowDays folds one show's ordered history into per-day totals. When a
// show reported more than once on a day the last report wins.
func addShowDays(byDay map[time.Time]*dayTotals, history []model.ShowSnapshot) {
	type report struct {
		day      time.Time
		total    float64
		reported float64
	}
	var reports []report
	for _, s := range history {
		if s.ReportDate == nil {
			continue
		}
		r := report{
			day:      truncateDay(*s.ReportDate),
			total:    model.Float(s.TotalSold),
			reported: max(model.Float(s.TodaySold), 0),
		}
		if n := len(reports); n > 0 && reports[n-1].day.Equal(r.day) {
			reports[n-1] = r
			continue
		}
		reports = append(reports, r)
	}

	prev := 0.0
	for i, r := range reports {
		increment := r.total
		if i > 0 {
			increment = r.total - prev
		}
		prev = r.total

		t, ok := byDay[r.day]
		if !ok {
			t = &dayTotals{}
			byDay[r.day] = t
		}
		t.official += r.total
		t.daily += max(r.reported, increment, 0)
	}
}
