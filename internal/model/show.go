package model

// PerformanceCategory buckets a show by occupancy.
type PerformanceCategory string

const (
	PerformanceUnderperforming PerformanceCategory = "Underperforming"
	PerformanceDeveloping      PerformanceCategory = "Developing"
	PerformanceStrong          PerformanceCategory = "Strong"
	PerformanceSoldOut         PerformanceCategory = "Sold Out"
)

// CategorizeOccupancy maps an occupancy percentage onto its bucket:
// [0,50) Underperforming, [50,75) Developing, [75,90) Strong, >=90 Sold Out.
func CategorizeOccupancy(rate float64) PerformanceCategory {
	switch {
	case rate >= 90:
		return PerformanceSoldOut
	case rate >= 75:
		return PerformanceStrong
	case rate >= 50:
		return PerformanceDeveloping
	default:
		return PerformanceUnderperforming
	}
}

// ConsolidatedShow is the derived per-show record. The embedded snapshot is
// the canonical (latest) report.
type ConsolidatedShow struct {
	ShowSnapshot

	OccupancyRate       float64             `json:"occupancy_rate"`
	AvgTicketPrice      float64             `json:"avg_ticket_price"`
	PotentialRevenue    float64             `json:"potential_revenue"`
	LostRevenue         float64             `json:"lost_revenue"`
	TotalHolds          int                 `json:"total_holds"`
	EffectiveCapacity   float64             `json:"effective_capacity"`
	DaysToShow          *int                `json:"days_to_show,omitempty"`
	DailySalesTarget    float64             `json:"daily_sales_target"`
	SalesLast7Days      float64             `json:"sales_last_7_days"`
	AvgSalesLast7Days   float64             `json:"avg_sales_last_7_days"`
	PerformanceCategory PerformanceCategory `json:"performance_category"`

	City           string `json:"city"`
	NormalizedCity string `json:"normalized_city"`
	CityCode       string `json:"city_code"`
	ShowSequence   int    `json:"show_sequence"`
	IsMultiShow    bool   `json:"is_multi_show"`
	ShowDateFromID string `json:"show_date_from_id,omitempty"`

	SnapshotCount int            `json:"snapshot_count"`
	History       []ShowSnapshot `json:"-"`
}
