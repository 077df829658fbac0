package adreport

import (
	"strings"

	"github.com/sells-group/showfunnel/internal/model"
)

// indicatorTargets maps exact result_indicator values onto the funnel column
// the row's results count belongs to.
var indicatorTargets = map[string]string{
	"actions:landing_page_view":                       ColLPViews,
	"landing_page_view":                               ColLPViews,
	"landing_page_views":                              ColLPViews,
	"lpviews":                                         ColLPViews,
	"actions:link_click":                              ColClicks,
	"link_clicks":                                     ColClicks,
	"actions:offsite_conversion.fb_pixel_add_to_cart": ColAddToCart,
	"offsite_conversion.fb_pixel_add_to_cart":         ColAddToCart,
	"add_to_cart":                                     ColAddToCart,
	"initiate_checkout":                               ColAddToCart,
	"actions:offsite_conversion.fb_pixel_purchase":    ColPurchases,
	"offsite_conversion.fb_pixel_purchase":            ColPurchases,
	"purchases":                                       ColPurchases,
	"purchase":                                        ColPurchases,
	"onsite_conversion.purchase":                      ColPurchases,
}

var indicatorKeywords = []struct {
	column   string
	keywords []string
}{
	{ColLPViews, []string{"landing", "lpview", "f1"}},
	{ColAddToCart, []string{"cart", "checkout", "f2"}},
	{ColPurchases, []string{"purchase", "conversion", "f3", "order"}},
}

// IndicatorTarget returns the column a result_indicator value counts
// towards: the exact table first, then keyword matching.
func IndicatorTarget(indicator string) (string, bool) {
	ind := strings.ToLower(strings.TrimSpace(indicator))
	if ind == "" {
		return "", false
	}
	if col, ok := indicatorTargets[ind]; ok {
		return col, true
	}
	for _, k := range indicatorKeywords {
		for _, kw := range k.keywords {
			if strings.Contains(ind, kw) {
				return k.column, true
			}
		}
	}
	return "", false
}

// FillKPIs derives missing rate metrics and, for funnel columns the table
// lacks, routes results through the result indicator. Values already present
// are never overwritten. columns is the set of resolved headers.
func FillKPIs(rec *model.AdRecord, columns map[string]bool) {
	routeResults(rec, columns)

	if rec.CTR == nil {
		rec.CTR = ratio(rec.Clicks, rec.Impressions, 100)
	}
	if rec.CPC == nil {
		rec.CPC = ratio(rec.Spend, rec.Clicks, 1)
	}
	if rec.CPM == nil {
		rec.CPM = ratio(rec.Spend, rec.Impressions, 1000)
	}
	if rec.CostPerResult == nil {
		rec.CostPerResult = ratio(rec.Spend, rec.Results, 1)
	}
}

func routeResults(rec *model.AdRecord, columns map[string]bool) {
	if rec.Results == nil {
		return
	}
	col, ok := IndicatorTarget(rec.ResultIndicator)
	if !ok || columns[col] {
		return
	}
	v := *rec.Results
	switch col {
	case ColLPViews:
		if rec.LPViews == nil {
			rec.LPViews = &v
		}
	case ColAddToCart:
		if rec.AddToCart == nil {
			rec.AddToCart = &v
		}
	case ColPurchases:
		if rec.Purchases == nil {
			rec.Purchases = &v
		}
	case ColClicks:
		if rec.Clicks == nil {
			rec.Clicks = &v
		}
	}
}

func ratio(num, den *float64, scale float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	v := *num / *den * scale
	return &v
}
