package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/showfunnel/internal/model"
)

func testIndex() *model.ShowIndex {
	idx := model.NewShowIndex()
	idx.Add("washingtondc", "WDC", 1, "WDC_0927")
	idx.Add("washingtondc", "WDC", 2, "WDC_0928_S2")
	idx.Add("miami", "MIA", 2, "MIA_1010_S2")
	idx.Add("miamibeach", "MIB", 1, "MIB_1011")
	idx.Add("montreal", "MTL", 1, "MTL_1105")
	idx.Add("boston", "BOS", 1, "BOS_1004")
	return idx
}

func TestDirect(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"WDC_0927 Tickets", "WDC_0927", true},
		{"wdc_0927_s2 retargeting", "WDC_0927_S2", true},
		{"Promo WDC-0927-S3", "WDC_0927_S3", true},
		{"Promo MIA-1010", "MIA_1010", true},
		{"MIA _ 1010 _ S2", "MIA_1010_S2", true},
		{"(BOS_1004)", "BOS_1004", true},
		{"US-WDC-Sales-0927-Interest-12", "", false},
		{"SALES-0927", "", false},
		{"MIAMI_1010", "", false},
		{"WDC_09271", "", false},
		{"nothing here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Direct{}.Match(tt.text, nil)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLegacy(t *testing.T) {
	idx := testIndex()
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"US-WDC-Sales-0927-Interest-12", "WDC_0927", true},
		{"us-wdc-sales-0927-target", "WDC_0927", true},
		{"US-WDC-Sales-0928-Interest-2", "WDC_0928_S2", true},
		{"US-WDC-Sales-0928", "WDC_0928_S2", true},
		{"US-WDC-Sales-1231-Interest-2", "WDC_0928_S2", true},
		{"BOS-Sales-1004 broad Interest", "BOS_1004", true},
		{"Tour_Miami_2", "MIA_1010_S2", true},
		{"Tour Montreal 1", "MTL_1105", true},
		{"Tour_Miami_7", "MIA_1010_S2", true},
		{"US-NYC-Sales-1101-Interest", "", false},
		{"Tour_Paris_1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Legacy{}.Match(tt.text, idx)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallback(t *testing.T) {
	idx := testIndex()
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"Washington DC lookalike", "WDC_0927", true},
		{"Washington DC show 2", "WDC_0928_S2", true},
		{"Washington DC #2", "WDC_0928_S2", true},
		{"Washington DC second date", "WDC_0928_S2", true},
		{"Miami Beach prospecting", "MIB_1011", true},
		{"Miami retarget", "MIA_1010_S2", true},
		{"Montréal remarketing", "MTL_1105", true},
		{"Paris awareness", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Fallback{}.Match(tt.text, idx)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallback_TieGoesToFirstSeenCity(t *testing.T) {
	idx := model.NewShowIndex()
	idx.Add("paris", "PAR", 1, "PAR_0101")
	idx.Add("parisx", "PAX", 1, "PAX_0101")
	idx.Add("osaka", "OSA", 1, "OSA_0101")
	idx.Add("lille", "LIL", 1, "LIL_0101")

	got, ok := Fallback{}.Match("osaka lille", idx)
	require.True(t, ok)
	assert.Equal(t, "OSA_0101", got)
}

func TestSequence(t *testing.T) {
	tests := map[string]int{
		"show 3":       3,
		"s4 lookalike": 4,
		"#12":          12,
		"third night":  3,
		"the 4th":      4,
		"interest 12":  1,
		"no hint":      1,
		"# 0 then 2nd": 2,
		"ads 2 show 5": 5,
	}
	for in, want := range tests {
		assert.Equal(t, want, Sequence(in), in)
	}
}

func TestMatcher_Precedence(t *testing.T) {
	m := New(testIndex())

	t.Run("legacy campaign", func(t *testing.T) {
		res := m.Match("US-WDC-Sales-0927-Interest-12")
		assert.Equal(t, "WDC_0927", res.ShowID)
		assert.Equal(t, model.ConfidenceLow, res.Confidence)
		assert.Equal(t, StrategyLegacy, res.Strategy)
	})

	t.Run("direct beats legacy", func(t *testing.T) {
		res := m.Match("BOS_1004 US-WDC-Sales-0927-Interest-12")
		assert.Equal(t, "BOS_1004", res.ShowID)
		assert.Equal(t, model.ConfidenceHigh, res.Confidence)
		assert.Equal(t, StrategyDirect, res.Strategy)
	})

	t.Run("legacy beats fallback", func(t *testing.T) {
		res := m.Match("Tour_Miami_2 Boston")
		assert.Equal(t, "MIA_1010_S2", res.ShowID)
		assert.Equal(t, StrategyLegacy, res.Strategy)
	})

	t.Run("direct id not in the sheet is still high", func(t *testing.T) {
		res := m.Match("NYC_1101 launch")
		assert.Equal(t, "NYC_1101", res.ShowID)
		assert.Equal(t, model.ConfidenceHigh, res.Confidence)
	})

	t.Run("no match", func(t *testing.T) {
		res := m.Match("Brand awareness")
		assert.Equal(t, "", res.ShowID)
		assert.Equal(t, model.ConfidenceNone, res.Confidence)
	})
}

func TestMatchAll(t *testing.T) {
	records := []model.AdRecord{
		{CampaignName: "WDC_0927 Tickets"},
		{CampaignName: "US-WDC-Sales-0927-Interest-12", AdSetName: "nan"},
		{CampaignName: "Spring promo", AdSetName: "Boston", AdName: "Video"},
		{CampaignName: "Brand", AdSetName: "nan", AdName: ""},
	}
	stats := New(testIndex()).MatchAll(records)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.High)
	assert.Equal(t, 2, stats.Low)
	assert.Equal(t, 1, stats.None)
	assert.Equal(t, 3, stats.Matched())
	assert.Equal(t, 1, stats.ByStrategy[StrategyFallback])

	assert.Equal(t, "WDC_0927", records[0].MatchedShowID)
	assert.Equal(t, model.ConfidenceHigh, records[0].MatchConfidence)
	assert.Equal(t, "WDC_0927", records[1].MatchedShowID)
	assert.Equal(t, StrategyLegacy, records[1].MatchStrategy)
	assert.Equal(t, "BOS_1004", records[2].MatchedShowID)
	assert.Equal(t, "", records[3].MatchedShowID)
	assert.Equal(t, model.ConfidenceNone, records[3].MatchConfidence)
}
