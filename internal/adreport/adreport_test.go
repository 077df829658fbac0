package adreport

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/showfunnel/internal/model"
)

func TestResolve(t *testing.T) {
	r := NewResolver()
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "vendor headers",
			in:   []string{"Reporting starts", "Campaign name", "Ad Set Name", "Ad name", "Impressions", "Link clicks", "Amount spent (USD)"},
			want: []string{"date", "campaign_name", "ad_set_name", "ad_name", "impressions", "clicks", "spend"},
		},
		{
			name: "unmatched headers are preserved",
			in:   []string{"Campaign", "Quality ranking", "CPM (cost per 1,000 impressions)"},
			want: []string{"campaign_name", "Quality ranking", "cpm"},
		},
		{
			name: "canonical name is never overwritten",
			in:   []string{"Day", "date"},
			want: []string{"Day", "date"},
		},
		{
			name: "alias priority beats column order",
			in:   []string{"Day", "Reporting starts"},
			want: []string{"Day", "date"},
		},
		{
			name: "each header binds once",
			in:   []string{"Clicks", "Link clicks"},
			want: []string{"clicks", "Link clicks"},
		},
		{
			name: "funnel shorthands",
			in:   []string{"F1", "fun2", "Tickets Sold", "Time of day (viewer's time zone)"},
			want: []string{"lp_views", "add_to_cart", "purchases", "time_of_day"},
		},
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewResolver()
	inputs := [][]string{
		{"Reporting starts", "Day", "Campaign", "Campaign name", "Ad set name", "Results", "Result indicator"},
		{"Placement", "Platform", "Device platform", "Impression device", "Amount spent", "cost"},
		{"time", "hour", "Time of day", "F3", "Purchases", "Orders"},
		{"", " ", "???", "date", "Date"},
	}
	for _, in := range inputs {
		once := r.Resolve(in)
		assert.Equal(t, once, r.Resolve(once), "%q", in)
	}
}

func TestResolve_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  spend: [\"Importe gastado (EUR)\"]\n  campaign_name: [\"Campaña\"]\n"), 0o600))

	overlay, err := LoadAliasOverlay(path)
	require.NoError(t, err)

	r := NewResolver(overlay)
	assert.Equal(t, []string{"spend", "campaign_name"}, r.Resolve([]string{"Importe gastado (EUR)", "Campaña"}))

	// Built-ins keep priority over overlay aliases.
	aliases := r.Aliases(ColSpend)
	assert.Equal(t, "spend", aliases[0])
	assert.Equal(t, "importegastadoeur", aliases[len(aliases)-1])
}

func TestLoadAliasOverlay_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAliasOverlay(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("aliases:\n  budget_owner: [x]\n"), 0o600))
	_, err = LoadAliasOverlay(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget_owner")
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    model.DatasetType
		ok      bool
	}{
		{"time", []string{"date", "campaign_name", "time_of_day"}, model.DatasetTime, true},
		{"time wins over placement", []string{"placement", "Time of day (viewer's time zone)"}, model.DatasetTime, true},
		{"placement", []string{"date", "campaign_name", "placement"}, model.DatasetPlacementDevice, true},
		{"device only", []string{"Device platform"}, model.DatasetPlacementDevice, true},
		{"days", []string{"date", "campaign_name", "spend"}, model.DatasetDays, true},
		{"days with raw headers", []string{"Reporting starts", "Campaign"}, model.DatasetDays, true},
		{"date without campaign", []string{"date", "spend"}, "", false},
		{"nothing", []string{"foo"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Detect(tt.headers)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFromFilename(t *testing.T) {
	assert.Equal(t, model.DatasetTime, DetectFromFilename("exports/Days-Time.csv"))
	assert.Equal(t, model.DatasetPlacementDevice, DetectFromFilename("days_placement.csv"))
	assert.Equal(t, model.DatasetPlacementDevice, DetectFromFilename("DEVICE breakdown.xlsx"))
	assert.Equal(t, model.DatasetDays, DetectFromFilename("report.csv"))

	d := DetectTable([]string{"foo"}, "hourly_time.csv")
	assert.True(t, d.FromFilename)
	assert.Equal(t, model.DatasetTime, d.Type)
}

func fp(v float64) *float64 { return &v }

func TestFillKPIs(t *testing.T) {
	rec := model.AdRecord{Impressions: fp(1000), Clicks: fp(50), Spend: fp(100), Results: fp(4)}
	FillKPIs(&rec, map[string]bool{})
	assert.InDelta(t, 5.0, *rec.CTR, 1e-9)
	assert.InDelta(t, 2.0, *rec.CPC, 1e-9)
	assert.InDelta(t, 100.0, *rec.CPM, 1e-9)
	assert.InDelta(t, 25.0, *rec.CostPerResult, 1e-9)

	t.Run("present values are kept", func(t *testing.T) {
		rec := model.AdRecord{Impressions: fp(1000), Clicks: fp(50), CTR: fp(9)}
		FillKPIs(&rec, nil)
		assert.Equal(t, 9.0, *rec.CTR)
	})

	t.Run("zero denominators stay nil", func(t *testing.T) {
		rec := model.AdRecord{Impressions: fp(0), Clicks: fp(0), Spend: fp(10)}
		FillKPIs(&rec, nil)
		assert.Nil(t, rec.CTR)
		assert.Nil(t, rec.CPC)
		assert.Nil(t, rec.CPM)
	})
}

func TestFillKPIs_ResultIndicator(t *testing.T) {
	tests := []struct {
		indicator string
		check     func(*model.AdRecord) *float64
	}{
		{"actions:offsite_conversion.fb_pixel_purchase", func(r *model.AdRecord) *float64 { return r.Purchases }},
		{"Landing page views", func(r *model.AdRecord) *float64 { return r.LPViews }},
		{"checkout_initiated", func(r *model.AdRecord) *float64 { return r.AddToCart }},
		{"website orders", func(r *model.AdRecord) *float64 { return r.Purchases }},
	}
	for _, tt := range tests {
		t.Run(tt.indicator, func(t *testing.T) {
			rec := model.AdRecord{Results: fp(7), ResultIndicator: tt.indicator}
			FillKPIs(&rec, map[string]bool{})
			got := tt.check(&rec)
			require.NotNil(t, got)
			assert.Equal(t, 7.0, *got)
		})
	}

	t.Run("existing funnel column wins", func(t *testing.T) {
		rec := model.AdRecord{Results: fp(7), ResultIndicator: "purchase"}
		FillKPIs(&rec, map[string]bool{ColPurchases: true})
		assert.Nil(t, rec.Purchases)
	})

	t.Run("unknown indicator", func(t *testing.T) {
		rec := model.AdRecord{Results: fp(7), ResultIndicator: "video_view"}
		FillKPIs(&rec, map[string]bool{})
		assert.Nil(t, rec.Purchases)
		assert.Nil(t, rec.LPViews)
		assert.Nil(t, rec.AddToCart)
	})
}

func TestValidate(t *testing.T) {
	full := []string{"date", "campaign_name", "ad_set_name", "ad_name", "impressions", "clicks", "spend"}
	assert.Nil(t, Validate(&model.AdTable{Type: model.DatasetDays, Headers: full}))

	issue := Validate(&model.AdTable{Type: model.DatasetPlacementDevice, Headers: full})
	require.NotNil(t, issue)
	assert.Equal(t, []string{"placement|platform"}, issue.Missing)

	issue = Validate(&model.AdTable{Type: model.DatasetTime, Headers: []string{"date", "campaign_name"}})
	require.NotNil(t, issue)
	assert.Equal(t, []string{"ad_set_name", "ad_name", "impressions", "clicks", "spend", "time_of_day"}, issue.Missing)
	assert.Contains(t, issue.String(), "days_time: missing ad_set_name")
}

const daysCSV = "\ufeffReporting starts,Campaign name,Ad set name,Ad name,Impressions,Link clicks,Amount spent (USD),Results,Result indicator,Quality ranking\n" +
	"2025-09-01,WDC_0927 Tickets,Broad,Video A,\"10,000\",200,150.00,3,actions:offsite_conversion.fb_pixel_purchase,Average\n" +
	",,,,,,,,,\n" +
	"2025-09-02,US-WDC-Sales-0927-Interest-12,Interest,Static,5000,50,100.00,2,purchase,\n"

const timeCSV = "Day,Campaign,Ad set name,Ad name,Time of day (viewer's time zone),Impressions,Clicks,Spend\n" +
	"2025-09-01,WDC_0927,Broad,Video A,18:00:00 - 18:59:59,100,4,2.5\n"

func TestProcess_MissingPlacementReport(t *testing.T) {
	p := NewProcessor(nil, 2)
	res, err := p.Process(context.Background(), []Upload{
		{Name: "days.csv", Data: []byte(daysCSV)},
		{Name: "days_time.csv", Data: []byte(timeCSV)},
	})
	require.Error(t, err)

	var missing *MissingTypesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []model.DatasetType{model.DatasetPlacementDevice}, missing.Missing)
	assert.Contains(t, err.Error(), "days_placement_device")

	// The partial result is still usable.
	require.NotNil(t, res)
	days := res.Records(model.DatasetDays)
	require.Len(t, days, 2)
	assert.Equal(t, "WDC_0927 Tickets", days[0].CampaignName)
	assert.Equal(t, 10000.0, *days[0].Impressions)
	assert.Equal(t, 150.0, *days[0].Spend)
	assert.Equal(t, 3.0, *days[0].Purchases)
	assert.InDelta(t, 2.0, *days[0].CTR, 1e-9)
	assert.Equal(t, "Average", days[0].Extra["Quality ranking"])
	assert.Equal(t, "days.csv", days[0].SourceFile)
	assert.Equal(t, model.ConfidenceNone, days[0].MatchConfidence)

	timeRecs := res.Records(model.DatasetTime)
	require.Len(t, timeRecs, 1)
	assert.Equal(t, "18:00:00 - 18:59:59", timeRecs[0].TimeOfDay)
	assert.Equal(t, "WDC_0927", timeRecs[0].CampaignName)

	assert.Equal(t, model.DatasetDays, res.Detections["days.csv"].Type)
	assert.False(t, res.Detections["days.csv"].FromFilename)
}

func TestProcess_AllTypes(t *testing.T) {
	placement := "Date,Campaign name,Ad set name,Ad name,Placement,Device platform,Impressions,Clicks,Amount spent\n" +
		"2025-09-01,WDC_0927,Broad,Video A,Feed,mobile_app,300,9,4.20\n"

	res, err := NewProcessor(nil, 0).Process(context.Background(), []Upload{
		{Name: "a.csv", Data: []byte(daysCSV)},
		{Name: "b.csv", Data: []byte(placement)},
		{Name: "c.csv", Data: []byte(timeCSV)},
		{Name: "d.csv", Data: []byte(daysCSV)},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Missing)
	assert.Len(t, res.Records(model.DatasetDays), 4)
	assert.Equal(t, []string{"a.csv", "d.csv"}, res.Tables[model.DatasetDays].Files)
	assert.Equal(t, "mobile_app", res.Records(model.DatasetPlacementDevice)[0].DevicePlatform)
}

func TestProcess_FileErrorsDoNotAbort(t *testing.T) {
	res, err := NewProcessor(nil, 1).Process(context.Background(), []Upload{
		{Name: "empty.csv", Data: []byte("\n\n")},
		{Name: "broken.xlsx", Data: []byte("PK\x03\x04not really a workbook")},
		{Name: "days.csv", Data: []byte(daysCSV)},
	})
	var missing *MissingTypesError
	require.True(t, errors.As(err, &missing))
	require.Len(t, res.FileErrors, 2)
	assert.Equal(t, "empty.csv", res.FileErrors[0].File)
	assert.True(t, errors.Is(res.FileErrors[0], ErrEmptyReport))
	assert.Equal(t, "broken.xlsx", res.FileErrors[1].File)
	assert.Len(t, res.Records(model.DatasetDays), 2)
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProcessor(nil, 1).Process(ctx, []Upload{{Name: "days.csv", Data: []byte(daysCSV)}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, row := range [][]string{
		{"Reporting starts", "Campaign name", "Ad set name", "Ad name", "Placement", "Impressions", "Clicks", "Amount spent (USD)"},
		{"2025-09-01", "MIA_1010_S2", "Broad", "Video", "Stories", "800", "16", "12.5"},
	} {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	// No extension: the zip signature selects the XLSX reader.
	assert.Equal(t, FormatXLSX, SniffFormat("upload", buf.Bytes()))

	res, err := NewProcessor(nil, 1).Process(context.Background(), []Upload{{Name: "upload", Data: buf.Bytes()}})
	require.Error(t, err)
	recs := res.Records(model.DatasetPlacementDevice)
	require.Len(t, recs, 1)
	assert.Equal(t, "Stories", recs[0].Placement)
	assert.Equal(t, 12.5, *recs[0].Spend)
}

func TestSniffFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, SniffFormat("a.CSV", []byte("PK\x03\x04")))
	assert.Equal(t, FormatXLSX, SniffFormat("a.xlsx", nil))
	assert.Equal(t, FormatCSV, SniffFormat("blob", []byte("date,campaign")))
}
