// Package adreport reads vendor ad-performance exports, renames their
// columns onto a canonical vocabulary and detects which report shape each
// file is.
package adreport

import (
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/showfunnel/internal/parse"
)

// Canonical column names.
const (
	ColDate             = "date"
	ColReportingEnds    = "reporting_ends"
	ColCampaignName     = "campaign_name"
	ColCampaignDelivery = "campaign_delivery"
	ColAdSetName        = "ad_set_name"
	ColAdSetBudget      = "ad_set_budget"
	ColAdSetBudgetType  = "ad_set_budget_type"
	ColAdName           = "ad_name"
	ColImpressions      = "impressions"
	ColReach            = "reach"
	ColFrequency        = "frequency"
	ColClicks           = "clicks"
	ColSpend            = "spend"
	ColCTR              = "ctr"
	ColCPC              = "cpc"
	ColCPM              = "cpm"
	ColResults          = "results"
	ColResultIndicator  = "result_indicator"
	ColCostPerResult    = "cost_per_result"
	ColAttribution      = "attribution_setting"
	ColStarts           = "starts"
	ColEnds             = "ends"
	ColPlacement        = "placement"
	ColPlatform         = "platform"
	ColDevicePlatform   = "device_platform"
	ColImpressionDevice = "impression_device"
	ColTimeOfDay        = "time_of_day"
	ColLPViews          = "lp_views"
	ColAddToCart        = "add_to_cart"
	ColPurchases        = "purchases"
)

// CanonicalFields lists the canonical columns in resolution order.
func CanonicalFields() []string {
	return []string{
		ColDate, ColReportingEnds, ColCampaignName, ColCampaignDelivery,
		ColAdSetName, ColAdSetBudget, ColAdSetBudgetType, ColAdName,
		ColImpressions, ColReach, ColFrequency, ColClicks, ColSpend,
		ColCTR, ColCPC, ColCPM, ColResults, ColResultIndicator, ColCostPerResult,
		ColAttribution, ColStarts, ColEnds,
		ColPlacement, ColPlatform, ColDevicePlatform, ColImpressionDevice, ColTimeOfDay,
		ColLPViews, ColAddToCart, ColPurchases,
	}
}

// builtinAliases are matched after normalization, so "Amount spent (USD)"
// and "amount_spent_usd" are the same alias.
var builtinAliases = map[string][]string{
	ColDate:             {"reporting_starts", "date", "day", "date_start", "created_time"},
	ColReportingEnds:    {"reporting_ends", "date_stop"},
	ColCampaignName:     {"campaign_name", "campaign", "campaign id"},
	ColCampaignDelivery: {"campaign_delivery"},
	ColAdSetName:        {"ad_set_name", "adset name"},
	ColAdSetBudget:      {"ad_set_budget"},
	ColAdSetBudgetType:  {"ad_set_budget_type"},
	ColAdName:           {"ad_name"},
	ColImpressions:      {"impressions", "impression"},
	ColReach:            {"reach", "unique_reach"},
	ColFrequency:        {"frequency"},
	ColClicks:           {"clicks", "link_clicks", "outbound_clicks"},
	ColSpend:            {"spend", "amount_spent", "amount spent (usd)", "cost"},
	ColCTR:              {"ctr", "ctr (link)", "click_through_rate", "link_click_through_rate"},
	ColCPC:              {"cpc", "cost_per_click", "cost per link click"},
	ColCPM:              {"cpm", "cpm (cost per 1,000 impressions)", "cpm (cost per 1,000 impressions) (usd)", "cost per 1,000 impressions"},
	ColResults:          {"results", "result"},
	ColResultIndicator:  {"result_indicator", "action_type"},
	ColCostPerResult:    {"cost_per_result", "cost_per_results"},
	ColAttribution:      {"attribution_setting"},
	ColStarts:           {"starts"},
	ColEnds:             {"ends"},
	ColPlacement:        {"placement", "publisher_platform"},
	ColPlatform:         {"platform"},
	ColDevicePlatform:   {"device_platform"},
	ColImpressionDevice: {"impression_device"},
	ColTimeOfDay:        {"time of day (viewer's time zone)", "time_of_day", "time", "hour"},
	ColLPViews: {
		"f1", "fun1", "lpviews", "lpviews_f1", "lpviews_fun1", "landing_page_views",
		"landing page view", "actions:landing_page_view", "website_landing_page_views",
	},
	ColAddToCart: {
		"f2", "fun2", "addtocart", "addtocart_f2", "addtocart_fun2", "initiated_checkout",
		"initiate_checkout", "adds_to_cart", "actions:offsite_conversion.fb_pixel_add_to_cart",
		"website_adds_to_cart",
	},
	ColPurchases: {
		"f3", "fun3", "conv_addtocart", "conv_f3", "purchases", "purchases_f3", "orders",
		"tickets_sold", "conversions", "website_purchases",
		"actions:offsite_conversion.fb_pixel_purchase", "purchase",
	},
}

// Resolver renames report headers onto canonical column names.
type Resolver struct {
	fields  []string
	aliases map[string][]string // canonical -> normalized aliases, priority order
}

// NewResolver builds a resolver from the built-in aliases plus any overlays.
// Overlay aliases rank after the built-ins.
func NewResolver(overlays ...map[string][]string) *Resolver {
	r := &Resolver{
		fields:  CanonicalFields(),
		aliases: make(map[string][]string),
	}
	for _, field := range r.fields {
		for _, a := range builtinAliases[field] {
			r.add(field, a)
		}
		r.add(field, field)
	}
	for _, overlay := range overlays {
		for field, aliases := range overlay {
			if _, ok := builtinAliases[field]; !ok {
				zap.L().Warn("adreport: ignoring aliases for unknown column", zap.String("column", field))
				continue
			}
			for _, a := range aliases {
				r.add(field, a)
			}
		}
	}
	return r
}

func (r *Resolver) add(field, alias string) {
	key := parse.Key(alias)
	if key == "" || slices.Contains(r.aliases[field], key) {
		return
	}
	r.aliases[field] = append(r.aliases[field], key)
}

// Aliases returns the normalized aliases for a canonical field.
func (r *Resolver) Aliases(field string) []string {
	return append([]string(nil), r.aliases[field]...)
}

// Resolve returns headers with recognised columns renamed to their canonical
// names. For each canonical field in order, aliases are tried in priority
// order and the first unbound header (in column order) matching an alias is
// renamed. A header already carrying a canonical name is never renamed, each
// header binds at most once, and unrecognised headers are returned unchanged.
// Resolve is idempotent.
func (r *Resolver) Resolve(headers []string) []string {
	out := append([]string(nil), headers...)
	keys := make([]string, len(headers))
	bound := make([]bool, len(headers))
	present := make(map[string]bool, len(headers))

	canonical := make(map[string]bool, len(r.fields))
	for _, f := range r.fields {
		canonical[f] = true
	}
	for i, h := range headers {
		keys[i] = parse.Key(h)
		if canonical[h] {
			bound[i] = true
			present[h] = true
		}
	}

	for _, field := range r.fields {
		if present[field] {
			continue
		}
		if i := r.bind(field, keys, bound); i >= 0 {
			out[i] = field
			bound[i] = true
			present[field] = true
		}
	}
	return out
}

func (r *Resolver) bind(field string, keys []string, bound []bool) int {
	for _, alias := range r.aliases[field] {
		for i, k := range keys {
			if !bound[i] && k == alias {
				return i
			}
		}
	}
	return -1
}

// aliasFile is the YAML layout of an alias overlay:
//
//	aliases:
//	  spend: ["importe gastado"]
type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliasOverlay reads extra column aliases from a YAML file.
func LoadAliasOverlay(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "adreport: read alias overlay %s", path)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "adreport: parse alias overlay")
	}
	for field := range f.Aliases {
		if _, ok := builtinAliases[field]; !ok {
			return nil, eris.Errorf("adreport: alias overlay names unknown column %q", field)
		}
	}
	return f.Aliases, nil
}
