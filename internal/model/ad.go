package model

import (
	"strings"
	"time"
)

// DatasetType identifies one of the supported ad report shapes.
type DatasetType string

const (
	DatasetDays            DatasetType = "days"
	DatasetPlacementDevice DatasetType = "days_placement_device"
	DatasetTime            DatasetType = "days_time"
)

// RequiredDatasets lists the report shapes a complete upload must contain.
func RequiredDatasets() []DatasetType {
	return []DatasetType{DatasetDays, DatasetPlacementDevice, DatasetTime}
}

// ParseDatasetType validates a dataset type name.
func ParseDatasetType(s string) (DatasetType, bool) {
	for _, dt := range RequiredDatasets() {
		if string(dt) == s {
			return dt, true
		}
	}
	return "", false
}

// MatchConfidence describes how an ad record's show id was derived.
type MatchConfidence string

const (
	ConfidenceHigh MatchConfidence = "high"
	ConfidenceLow  MatchConfidence = "low"
	ConfidenceNone MatchConfidence = "none"
)

// AdRecord is one normalized ad report row.
type AdRecord struct {
	Date            *time.Time `json:"date,omitempty"`
	CampaignName    string     `json:"campaign_name,omitempty"`
	AdSetName       string     `json:"ad_set_name,omitempty"`
	AdName          string     `json:"ad_name,omitempty"`
	Impressions     *float64   `json:"impressions,omitempty"`
	Reach           *float64   `json:"reach,omitempty"`
	Frequency       *float64   `json:"frequency,omitempty"`
	Clicks          *float64   `json:"clicks,omitempty"`
	Spend           *float64   `json:"spend,omitempty"`
	CTR             *float64   `json:"ctr,omitempty"`
	CPC             *float64   `json:"cpc,omitempty"`
	CPM             *float64   `json:"cpm,omitempty"`
	Results         *float64   `json:"results,omitempty"`
	CostPerResult   *float64   `json:"cost_per_result,omitempty"`
	ResultIndicator string     `json:"result_indicator,omitempty"`

	LPViews   *float64 `json:"lp_views,omitempty"`
	AddToCart *float64 `json:"add_to_cart,omitempty"`
	Purchases *float64 `json:"purchases,omitempty"`

	Placement        string `json:"placement,omitempty"`
	Platform         string `json:"platform,omitempty"`
	DevicePlatform   string `json:"device_platform,omitempty"`
	ImpressionDevice string `json:"impression_device,omitempty"`
	TimeOfDay        string `json:"time_of_day,omitempty"`

	MatchedShowID   string          `json:"matched_show_id,omitempty"`
	MatchConfidence MatchConfidence `json:"match_confidence"`
	MatchStrategy   string          `json:"match_strategy,omitempty"`

	SourceFile string            `json:"source_file,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// SearchText joins the campaign, ad set, and ad names used for show matching.
// Empty and "nan" placeholders are skipped.
func (r AdRecord) SearchText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.CampaignName, r.AdSetName, r.AdName} {
		p = strings.TrimSpace(p)
		if p == "" || strings.EqualFold(p, "nan") {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// AdTable is the normalized content of one dataset type.
type AdTable struct {
	Type    DatasetType `json:"type"`
	Headers []string    `json:"headers"`
	Records []AdRecord  `json:"records"`
	Files   []string    `json:"files"`
}
