package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sells-group/showfunnel/internal/consolidate"
	"github.com/sells-group/showfunnel/internal/funnel"
	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/pipeline"
)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatShows writes one line per consolidated show.
func formatShows(out io.Writer, shows []model.ConsolidatedShow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SHOW\tCITY\tDATE\tSOLD\tCAPACITY\tOCCUPANCY\tCATEGORY")
	for _, s := range shows {
		date := "-"
		if s.ShowDate != nil {
			date = s.ShowDate.Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.0f\t%.1f%%\t%s\n",
			s.ShowID, s.City, date,
			model.Float(s.TotalSold), model.Float(s.Capacity),
			s.OccupancyRate, s.PerformanceCategory,
		)
	}
	_ = w.Flush()
}

// formatSummary writes the portfolio totals.
func formatSummary(out io.Writer, s consolidate.PortfolioSummary) {
	_, _ = fmt.Fprintf(out, "\nShows: %d  Cities: %d  Sold out: %d\n", s.TotalShows, s.Cities, s.SoldOutShows)
	_, _ = fmt.Fprintf(out, "Sold: %.0f / %.0f  Revenue: %.2f  Lost: %.2f\n", s.TotalSold, s.TotalCapacity, s.TotalRevenue, s.LostRevenue)
	_, _ = fmt.Fprintf(out, "Avg occupancy: %.1f%%  Avg ticket: %.2f\n", s.AvgOccupancy, s.AvgTicketPrice)
}

// formatAdTables writes match statistics per uploaded report type.
func formatAdTables(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tRECORDS\tHIGH\tLOW\tNONE")
	for _, dt := range model.RequiredDatasets() {
		st, ok := res.MatchStats[dt]
		if !ok {
			_, _ = fmt.Fprintf(w, "%s\tmissing\t\t\t\n", dt)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", dt, st.Total, st.High, st.Low, st.None)
	}
	_ = w.Flush()

	for _, fe := range res.FileErrors {
		_, _ = fmt.Fprintf(out, "skipped %s\n", fe.Error())
	}
	for _, issue := range res.Issues {
		_, _ = fmt.Fprintf(out, "warning: %s\n", issue.String())
	}
	if len(res.Unlinked) > 0 {
		_, _ = fmt.Fprintf(out, "ad spend on shows not in the sheet: %v\n", res.Unlinked)
	}
}

// formatPerformance writes shows with ad activity, highest spend first.
func formatPerformance(out io.Writer, perf []funnel.ShowPerformance) {
	rows := make([]funnel.ShowPerformance, 0, len(perf))
	for _, p := range perf {
		if p.HasAds {
			rows = append(rows, p)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].AdSpend > rows[j].AdSpend })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nSHOW\tSPEND\tPURCHASES\tROAS\tCOST/TICKET\tCLICK->PURCHASE\tCAMPAIGN")
	for _, p := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.0f\t%.2f\t%.2f\t%.2f%%\t%s\n",
			p.ShowID, p.AdSpend, p.Purchases, p.ROAS, p.CostPerTicket, p.ClickToPurchaseRate, p.CampaignName)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tSHOWS\tAD_RECORDS\tMATCHED\tMISSING")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		missing := "-"
		if len(r.MissingTypes) > 0 {
			missing = fmt.Sprint(r.MissingTypes)
		}
		if r.Status == model.RunStatusFailed && r.Error != "" {
			missing = r.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			id, r.Status, r.StartedAt.Format("2006-01-02 15:04"),
			r.Shows, r.AdRecords, r.Matched, missing)
	}
	_ = w.Flush()
}
