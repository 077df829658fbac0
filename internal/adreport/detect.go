package adreport

import (
	"path/filepath"
	"strings"

	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/parse"
)

var (
	timeMarkers      = []string{"timeofday", "timeofdayviewerstimezone"}
	placementMarkers = []string{"placement", "platform", "publisherplatform", "deviceplatform", "impressiondevice"}
	dateMarkers      = []string{"date", "reportingstarts", "reportingends"}
	campaignMarkers  = []string{"campaignname", "campaign"}
)

// Detection records how a file's dataset type was decided.
type Detection struct {
	Type         model.DatasetType `json:"type"`
	FromFilename bool              `json:"from_filename"`
}

// Detect infers the dataset type from (resolved) headers. Time-of-day
// columns win over placement columns, which win over the plain daily shape.
func Detect(headers []string) (model.DatasetType, bool) {
	keys := make(map[string]bool, len(headers))
	for _, h := range headers {
		keys[parse.Key(h)] = true
	}
	has := func(markers []string) bool {
		for _, m := range markers {
			if keys[m] {
				return true
			}
		}
		return false
	}

	switch {
	case has(timeMarkers):
		return model.DatasetTime, true
	case has(placementMarkers):
		return model.DatasetPlacementDevice, true
	case has(dateMarkers) && has(campaignMarkers):
		return model.DatasetDays, true
	}
	return "", false
}

// DetectFromFilename guesses the dataset type from a file name. It never
// fails; anything unrecognised is treated as the daily report.
func DetectFromFilename(name string) model.DatasetType {
	base := strings.ToLower(filepath.Base(name))
	switch {
	case strings.Contains(base, "time"):
		return model.DatasetTime
	case strings.Contains(base, "placement"), strings.Contains(base, "device"):
		return model.DatasetPlacementDevice
	default:
		return model.DatasetDays
	}
}

// DetectTable tries the headers first and falls back to the file name.
func DetectTable(headers []string, name string) Detection {
	if dt, ok := Detect(headers); ok {
		return Detection{Type: dt}
	}
	return Detection{Type: DetectFromFilename(name), FromFilename: true}
}
