package model

// FunnelSummary is the per-show rollup of matched ad records.
type FunnelSummary struct {
	ShowID      string  `json:"show_id"`
	Spend       float64 `json:"spend"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	LPViews     float64 `json:"lp_views"`
	AddToCart   float64 `json:"add_to_cart"`
	Purchases   float64 `json:"purchases"`
	Records     int     `json:"records"`

	ClicksPerTicket    float64 `json:"clicks_per_ticket"`
	LPViewsPerTicket   float64 `json:"lp_views_per_ticket"`
	AddToCartPerTicket float64 `json:"add_to_cart_per_ticket"`
}

// ComputeRatios fills the per-ticket ratios from the summed counters. Each
// is zero when there are no purchases.
func (f *FunnelSummary) ComputeRatios() {
	f.ClicksPerTicket, f.LPViewsPerTicket, f.AddToCartPerTicket = 0, 0, 0
	if f.Purchases == 0 {
		return
	}
	f.ClicksPerTicket = f.Clicks / f.Purchases
	f.LPViewsPerTicket = f.LPViews / f.Purchases
	f.AddToCartPerTicket = f.AddToCart / f.Purchases
}
