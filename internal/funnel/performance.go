package funnel

import (
	"github.com/sells-group/showfunnel/internal/model"
)

// ShowPerformance joins one consolidated show with its ad funnel.
type ShowPerformance struct {
	ShowID              string                    `json:"show_id"`
	ShowName            string                    `json:"show_name"`
	City                string                    `json:"city"`
	SalesToDate         float64                   `json:"sales_to_date"`
	TotalSold           float64                   `json:"total_sold"`
	OccupancyRate       float64                   `json:"occupancy_rate"`
	PerformanceCategory model.PerformanceCategory `json:"performance_category"`

	HasAds       bool    `json:"has_ads"`
	AdSpend      float64 `json:"ad_spend"`
	Clicks       float64 `json:"clicks"`
	Purchases    float64 `json:"purchases"`
	CampaignName string  `json:"suggested_campaign_name"`

	ROAS                float64 `json:"roas"`
	CostPerTicket       float64 `json:"cost_per_ticket"`
	ClickToPurchaseRate float64 `json:"click_to_purchase_rate"`
}

// Integrate builds one ShowPerformance per show, in show order. Shows
// without a funnel keep zero ad metrics.
func Integrate(shows []model.ConsolidatedShow, funnels map[string]*model.FunnelSummary) []ShowPerformance {
	out := make([]ShowPerformance, 0, len(shows))
	for i := range shows {
		s := &shows[i]
		p := ShowPerformance{
			ShowID:              s.ShowID,
			ShowName:            s.ShowName,
			City:                s.City,
			SalesToDate:         model.Float(s.SalesToDate),
			TotalSold:           model.Float(s.TotalSold),
			OccupancyRate:       s.OccupancyRate,
			PerformanceCategory: s.PerformanceCategory,
			CampaignName:        CampaignName(s.ShowID),
		}
		if fs, ok := funnels[s.ShowID]; ok && fs != nil {
			p.HasAds = true
			p.AdSpend = fs.Spend
			p.Clicks = fs.Clicks
			p.Purchases = fs.Purchases
			p.ROAS = ratio(p.SalesToDate, fs.Spend)
			p.CostPerTicket = ratio(fs.Spend, p.TotalSold)
			p.ClickToPurchaseRate = ratio(fs.Purchases, fs.Clicks) * 100
		}
		out = append(out, p)
	}
	return out
}

// Unlinked returns funnel show ids that have no consolidated show, which
// usually means a direct id in a campaign name that is not on the sheet.
func Unlinked(shows []model.ConsolidatedShow, funnels map[string]*model.FunnelSummary) []string {
	known := make(map[string]bool, len(shows))
	for i := range shows {
		known[shows[i].ShowID] = true
	}
	var out []string
	for _, id := range ShowIDs(funnels) {
		if !known[id] {
			out = append(out, id)
		}
	}
	return out
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}
