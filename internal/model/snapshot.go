package model

import "time"

// ShowSnapshot is one reported observation of one show's sales state.
// Numeric fields are nil when the source cell was empty or unparseable;
// zero always means the sheet reported zero.
type ShowSnapshot struct {
	ShowID     string     `json:"show_id"`
	ShowName   string     `json:"show_name"`
	ShowDate   *time.Time `json:"show_date,omitempty"`
	ReportDate *time.Time `json:"report_date,omitempty"`

	Capacity             *float64 `json:"capacity,omitempty"`
	VenueHolds           *int     `json:"venue_holds,omitempty"`
	WheelchairCompanions *int     `json:"wheelchair_companions,omitempty"`
	Camera               *int     `json:"camera,omitempty"`
	ArtistHolds          *int     `json:"artist_holds,omitempty"`
	Kills                *int     `json:"kills,omitempty"`

	YesterdaySales         *float64 `json:"yesterday_sales,omitempty"`
	TodaySold              *float64 `json:"today_sold,omitempty"`
	SalesToDate            *float64 `json:"sales_to_date,omitempty"` // reference currency
	TotalSold              *float64 `json:"total_sold,omitempty"`
	Remaining              *float64 `json:"remaining,omitempty"`
	SoldPercentage         *float64 `json:"sold_percentage,omitempty"`
	AvgTicketPriceReported *float64 `json:"average_ticket_price_reported,omitempty"`

	SalesCurrency    string   `json:"sales_currency,omitempty"`
	SalesToDateLocal *float64 `json:"sales_to_date_local,omitempty"`

	ReportMessage string `json:"report_message,omitempty"`
	SourceRow     int    `json:"source_row_index"`
	Month         string `json:"month,omitempty"`
}

// TotalHolds sums the hold quantities, counting unknown holds as zero.
func (s ShowSnapshot) TotalHolds() int {
	total := 0
	for _, h := range []*int{s.VenueHolds, s.WheelchairCompanions, s.Camera, s.ArtistHolds, s.Kills} {
		if h != nil {
			total += *h
		}
	}
	return total
}

// Float returns the value behind p, or zero when p is nil.
func Float(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
