package store

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/showfunnel/internal/model"
)

var funnelColumns = []string{
	"run_id", "show_id", "spend", "impressions", "clicks",
	"lp_views", "add_to_cart", "purchases", "records",
}

var (
	funnelColumnList = strings.Join(funnelColumns, ", ")
	funnelSelectList = strings.Join(funnelColumns[1:], ", ")
)

// funnelRows flattens funnels into rows ordered by show id.
func funnelRows(runID string, funnels map[string]*model.FunnelSummary) [][]any {
	ids := make([]string, 0, len(funnels))
	for id, fs := range funnels {
		if fs != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		fs := funnels[id]
		rows = append(rows, []any{
			runID, id, fs.Spend, fs.Impressions, fs.Clicks,
			fs.LPViews, fs.AddToCart, fs.Purchases, fs.Records,
		})
	}
	return rows
}

// scanFunnel reads one funnelSelectList row and recomputes the per-ticket
// ratios, which are not stored.
func scanFunnel(row scannable) (*model.FunnelSummary, error) {
	var fs model.FunnelSummary
	if err := row.Scan(&fs.ShowID, &fs.Spend, &fs.Impressions, &fs.Clicks,
		&fs.LPViews, &fs.AddToCart, &fs.Purchases, &fs.Records); err != nil {
		return nil, eris.Wrap(err, "store: scan funnel")
	}
	fs.ComputeRatios()
	return &fs, nil
}
