// Package funnel rolls matched ad records up per show and joins the result
// with the consolidated sales figures.
package funnel

import (
	"sort"
	"strings"

	"github.com/sells-group/showfunnel/internal/model"
)

// Aggregate sums the funnel counters of every matched record per show.
// Unmatched records are skipped. Nil values count as zero.
func Aggregate(records []model.AdRecord) map[string]*model.FunnelSummary {
	out := make(map[string]*model.FunnelSummary)
	for i := range records {
		r := &records[i]
		if r.MatchedShowID == "" {
			continue
		}
		fs, ok := out[r.MatchedShowID]
		if !ok {
			fs = &model.FunnelSummary{ShowID: r.MatchedShowID}
			out[r.MatchedShowID] = fs
		}
		fs.Spend += model.Float(r.Spend)
		fs.Impressions += model.Float(r.Impressions)
		fs.Clicks += model.Float(r.Clicks)
		fs.LPViews += model.Float(r.LPViews)
		fs.AddToCart += model.Float(r.AddToCart)
		fs.Purchases += model.Float(r.Purchases)
		fs.Records++
	}

	for _, fs := range out {
		fs.ComputeRatios()
	}
	return out
}

// ShowIDs returns the keys of a funnel map in sorted order.
func ShowIDs(funnels map[string]*model.FunnelSummary) []string {
	ids := make([]string, 0, len(funnels))
	for id := range funnels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CampaignName suggests a campaign name for a show id, e.g.
// "WDC_0927_S2" -> "WDC-Sales-0927-S2". Ids without a date part are
// returned unchanged.
func CampaignName(showID string) string {
	parts := strings.Split(showID, "_")
	if len(parts) < 2 {
		return showID
	}
	name := parts[0] + "-Sales-" + parts[1]
	if len(parts) > 2 && parts[2] != "" {
		name += "-" + parts[2]
	}
	return name
}
