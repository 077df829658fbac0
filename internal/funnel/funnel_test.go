package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/showfunnel/internal/model"
)

func f(v float64) *float64 { return &v }

func TestAggregate_SumsPerShow(t *testing.T) {
	records := []model.AdRecord{
		{MatchedShowID: "WDC_0927", Spend: f(100), Purchases: f(2), Clicks: f(40), Impressions: f(1000), LPViews: f(20)},
		{MatchedShowID: "WDC_0927", Spend: f(150), Purchases: f(3), Clicks: f(60), Impressions: f(2000), AddToCart: f(10)},
		{MatchedShowID: "", Spend: f(999), Purchases: f(9)},
	}

	got := Aggregate(records)
	require.Len(t, got, 1)
	fs := got["WDC_0927"]
	require.NotNil(t, fs)

	assert.Equal(t, 250.0, fs.Spend)
	assert.Equal(t, 5.0, fs.Purchases)
	assert.Equal(t, 100.0, fs.Clicks)
	assert.Equal(t, 3000.0, fs.Impressions)
	assert.Equal(t, 2, fs.Records)
	assert.Equal(t, 100.0/5, fs.ClicksPerTicket)
	assert.Equal(t, 20.0/5, fs.LPViewsPerTicket)
	assert.Equal(t, 10.0/5, fs.AddToCartPerTicket)
}

func TestAggregate_NilAndZeroPurchases(t *testing.T) {
	records := []model.AdRecord{
		{MatchedShowID: "BOS_1004", Clicks: f(12)},
		{MatchedShowID: "BOS_1004"},
	}

	fs := Aggregate(records)["BOS_1004"]
	require.NotNil(t, fs)
	assert.Equal(t, 12.0, fs.Clicks)
	assert.Zero(t, fs.Spend)
	assert.Zero(t, fs.Purchases)
	assert.Zero(t, fs.ClicksPerTicket)
	assert.Equal(t, 2, fs.Records)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestShowIDs_Sorted(t *testing.T) {
	funnels := map[string]*model.FunnelSummary{
		"MIA_1010": {}, "BOS_1004": {}, "WDC_0927": {},
	}
	assert.Equal(t, []string{"BOS_1004", "MIA_1010", "WDC_0927"}, ShowIDs(funnels))
}

func TestCampaignName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"WDC_0927_S2", "WDC-Sales-0927-S2"},
		{"WDC_0927", "WDC-Sales-0927"},
		{"WDC", "WDC"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CampaignName(tt.in))
		})
	}
}

func TestIntegrate(t *testing.T) {
	shows := []model.ConsolidatedShow{
		{
			ShowSnapshot:  model.ShowSnapshot{ShowID: "WDC_0927", ShowName: "27.Washington DC", SalesToDate: f(60000), TotalSold: f(500)},
			City:          "Washington DC",
			OccupancyRate: 10,
		},
		{ShowSnapshot: model.ShowSnapshot{ShowID: "BOS_1004", ShowName: "4.Boston"}},
	}
	funnels := map[string]*model.FunnelSummary{
		"WDC_0927": {ShowID: "WDC_0927", Spend: 250, Clicks: 100, Purchases: 5},
		"NYC_1101": {ShowID: "NYC_1101", Spend: 10},
	}

	perf := Integrate(shows, funnels)
	require.Len(t, perf, 2)

	wdc := perf[0]
	assert.Equal(t, "WDC_0927", wdc.ShowID)
	assert.True(t, wdc.HasAds)
	assert.Equal(t, 60000.0/250, wdc.ROAS)
	assert.Equal(t, 250.0/500, wdc.CostPerTicket)
	assert.Equal(t, 5.0, wdc.ClickToPurchaseRate)
	assert.Equal(t, "WDC-Sales-0927", wdc.CampaignName)

	bos := perf[1]
	assert.False(t, bos.HasAds)
	assert.Zero(t, bos.ROAS)
	assert.Zero(t, bos.CostPerTicket)
	assert.Zero(t, bos.ClickToPurchaseRate)

	assert.Equal(t, []string{"NYC_1101"}, Unlinked(shows, funnels))
}

func TestIntegrate_ZeroDenominators(t *testing.T) {
	shows := []model.ConsolidatedShow{
		{ShowSnapshot: model.ShowSnapshot{ShowID: "MIA_1010", SalesToDate: f(500), TotalSold: f(0)}},
	}
	funnels := map[string]*model.FunnelSummary{
		"MIA_1010": {ShowID: "MIA_1010", Spend: 0, Clicks: 0, Purchases: 3},
	}

	p := Integrate(shows, funnels)[0]
	assert.True(t, p.HasAds)
	assert.Zero(t, p.ROAS)
	assert.Zero(t, p.CostPerTicket)
	assert.Zero(t, p.ClickToPurchaseRate)
}
