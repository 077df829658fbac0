package adreport

import (
	"fmt"
	"strings"

	"github.com/sells-group/showfunnel/internal/model"
)

var baseRequired = []string{ColDate, ColCampaignName, ColAdSetName, ColAdName, ColImpressions, ColClicks, ColSpend}

// ValidationIssue lists the required columns a table lacks. Issues are
// warnings; the table is still used.
type ValidationIssue struct {
	Type    model.DatasetType `json:"type"`
	Missing []string          `json:"missing"`
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: missing %s", v.Type, strings.Join(v.Missing, ", "))
}

// Validate checks a table's headers against the columns its type requires.
// Alternatives are reported joined with "|".
func Validate(table *model.AdTable) *ValidationIssue {
	have := make(map[string]bool, len(table.Headers))
	for _, h := range table.Headers {
		have[h] = true
	}

	var missing []string
	for _, col := range baseRequired {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	switch table.Type {
	case model.DatasetPlacementDevice:
		if !have[ColPlacement] && !have[ColPlatform] {
			missing = append(missing, ColPlacement+"|"+ColPlatform)
		}
	case model.DatasetTime:
		if !have[ColTimeOfDay] {
			missing = append(missing, ColTimeOfDay)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationIssue{Type: table.Type, Missing: missing}
}
