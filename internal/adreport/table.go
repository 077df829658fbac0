package adreport

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/showfunnel/internal/fetcher"
	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/parse"
)

// Format is the container format of an uploaded report.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrEmptyReport is returned for files without a header row.
var ErrEmptyReport = eris.New("adreport: report has no header row")

var zipMagic = []byte("PK\x03\x04")

// SniffFormat picks the reader for a file: by extension first, then by the
// zip signature that every XLSX workbook starts with.
func SniffFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	}
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// ReadRows reads every row of a report, header included.
func ReadRows(ctx context.Context, name string, data []byte) ([][]string, error) {
	switch SniffFormat(name, data) {
	case FormatXLSX:
		rows, err := fetcher.ReadXLSXBytes(data, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "adreport: read %s", name)
		}
		return rows, nil
	default:
		rows, err := fetcher.ReadCSV(ctx, bytes.NewReader(data), fetcher.CSVOptions{LazyQuotes: true, TrimSpace: true})
		if err != nil {
			return nil, eris.Wrapf(err, "adreport: read %s", name)
		}
		return rows, nil
	}
}

// splitHeader returns the first non-blank row as the header and the rest as
// the body.
func splitHeader(rows [][]string) ([]string, [][]string, error) {
	for i, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				headers := make([]string, len(row))
				for j, h := range row {
					headers[j] = strings.TrimSpace(h)
				}
				return headers, rows[i+1:], nil
			}
		}
	}
	return nil, nil, ErrEmptyReport
}

type setter func(rec *model.AdRecord, cell string)

func num(dst func(*model.AdRecord) **float64) setter {
	return func(rec *model.AdRecord, cell string) { *dst(rec) = parse.NumericPtr(cell) }
}

func text(dst func(*model.AdRecord) *string) setter {
	return func(rec *model.AdRecord, cell string) { *dst(rec) = cell }
}

// recordFields maps canonical columns onto AdRecord fields. Canonical
// columns without a field here land in AdRecord.Extra.
var recordFields = map[string]setter{
	ColDate:             func(rec *model.AdRecord, cell string) { rec.Date = parse.Date(cell) },
	ColCampaignName:     text(func(r *model.AdRecord) *string { return &r.CampaignName }),
	ColAdSetName:        text(func(r *model.AdRecord) *string { return &r.AdSetName }),
	ColAdName:           text(func(r *model.AdRecord) *string { return &r.AdName }),
	ColImpressions:      num(func(r *model.AdRecord) **float64 { return &r.Impressions }),
	ColReach:            num(func(r *model.AdRecord) **float64 { return &r.Reach }),
	ColFrequency:        num(func(r *model.AdRecord) **float64 { return &r.Frequency }),
	ColClicks:           num(func(r *model.AdRecord) **float64 { return &r.Clicks }),
	ColSpend:            num(func(r *model.AdRecord) **float64 { return &r.Spend }),
	ColCTR:              num(func(r *model.AdRecord) **float64 { return &r.CTR }),
	ColCPC:              num(func(r *model.AdRecord) **float64 { return &r.CPC }),
	ColCPM:              num(func(r *model.AdRecord) **float64 { return &r.CPM }),
	ColResults:          num(func(r *model.AdRecord) **float64 { return &r.Results }),
	ColCostPerResult:    num(func(r *model.AdRecord) **float64 { return &r.CostPerResult }),
	ColResultIndicator:  text(func(r *model.AdRecord) *string { return &r.ResultIndicator }),
	ColLPViews:          num(func(r *model.AdRecord) **float64 { return &r.LPViews }),
	ColAddToCart:        num(func(r *model.AdRecord) **float64 { return &r.AddToCart }),
	ColPurchases:        num(func(r *model.AdRecord) **float64 { return &r.Purchases }),
	ColPlacement:        text(func(r *model.AdRecord) *string { return &r.Placement }),
	ColPlatform:         text(func(r *model.AdRecord) *string { return &r.Platform }),
	ColDevicePlatform:   text(func(r *model.AdRecord) *string { return &r.DevicePlatform }),
	ColImpressionDevice: text(func(r *model.AdRecord) *string { return &r.ImpressionDevice }),
	ColTimeOfDay:        text(func(r *model.AdRecord) *string { return &r.TimeOfDay }),
}

// BuildRecords converts body rows under resolved headers into records.
// Blank rows are dropped; cells beyond the header width are ignored.
func BuildRecords(headers []string, body [][]string, source string) []model.AdRecord {
	records := make([]model.AdRecord, 0, len(body))
	for _, row := range body {
		if blankRow(row) {
			continue
		}
		rec := model.AdRecord{SourceFile: source, MatchConfidence: model.ConfidenceNone}
		for i, h := range headers {
			if i >= len(row) || h == "" {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if set, ok := recordFields[h]; ok {
				set(&rec, cell)
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[h] = cell
		}
		records = append(records, rec)
	}
	return records
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
