package pipeline

import (
	"time"

	"github.com/sells-group/showfunnel/internal/adreport"
	"github.com/sells-group/showfunnel/internal/consolidate"
	"github.com/sells-group/showfunnel/internal/funnel"
	"github.com/sells-group/showfunnel/internal/match"
	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/sheet"
)

// Result is everything one run produced.
type Result struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	AsOf      time.Time `json:"as_of"`

	SheetStats sheet.Stats                          `json:"sheet_stats"`
	Snapshots  int                                  `json:"snapshots"`
	Shows      []model.ConsolidatedShow             `json:"shows"`
	ShowsByID  map[string]*model.ConsolidatedShow   `json:"-"`
	Index      *model.ShowIndex                     `json:"-"`
	Collisions []model.IndexCollision               `json:"collisions,omitempty"`
	Summary    consolidate.PortfolioSummary         `json:"summary"`
	Timeline   []consolidate.TimelinePoint          `json:"timeline"`
	Tables     map[model.DatasetType]*model.AdTable `json:"-"`

	Detections map[string]adreport.Detection     `json:"detections,omitempty"`
	MatchStats map[model.DatasetType]match.Stats `json:"match_stats,omitempty"`
	Missing    []model.DatasetType               `json:"missing_types,omitempty"`
	Issues     []adreport.ValidationIssue        `json:"issues,omitempty"`
	FileErrors []*adreport.FileError             `json:"-"`

	Funnels     map[string]*model.FunnelSummary `json:"funnels"`
	Performance []funnel.ShowPerformance        `json:"performance"`
	Unlinked    []string                        `json:"unlinked_show_ids,omitempty"`
}

// ShowDetail is one show with its funnel, performance and sales timeline.
type ShowDetail struct {
	Show        *model.ConsolidatedShow     `json:"show"`
	Funnel      *model.FunnelSummary        `json:"funnel,omitempty"`
	Performance *funnel.ShowPerformance     `json:"performance,omitempty"`
	Timeline    []consolidate.TimelinePoint `json:"timeline"`
}

// Show looks up one show by id.
func (r *Result) Show(id string) (ShowDetail, bool) {
	sh, ok := r.ShowsByID[id]
	if !ok {
		return ShowDetail{}, false
	}
	d := ShowDetail{
		Show:     sh,
		Funnel:   r.Funnels[id],
		Timeline: consolidate.ShowTimeline(*sh, r.AsOf),
	}
	for i := range r.Performance {
		if r.Performance[i].ShowID == id {
			d.Performance = &r.Performance[i]
			break
		}
	}
	return d, true
}

// Records returns the records of one dataset type, or nil.
func (r *Result) Records(dt model.DatasetType) []model.AdRecord {
	if t, ok := r.Tables[dt]; ok && t != nil {
		return t.Records
	}
	return nil
}

// AdRecordCount counts records across all tables.
func (r *Result) AdRecordCount() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Records)
	}
	return n
}

// MatchedCount counts records that received a show id.
func (r *Result) MatchedCount() int {
	n := 0
	for _, s := range r.MatchStats {
		n += s.Matched()
	}
	return n
}

// MissingNames returns the missing dataset types as strings.
func (r *Result) MissingNames() []string {
	out := make([]string, len(r.Missing))
	for i, m := range r.Missing {
		out[i] = string(m)
	}
	return out
}

// Run summarizes the result as a persisted run record.
func (r *Result) Run() *model.Run {
	status := model.RunStatusComplete
	if len(r.Missing) > 0 {
		status = model.RunStatusPartial
	}
	return &model.Run{
		ID:           r.RunID,
		Source:       r.Source,
		Status:       status,
		StartedAt:    r.StartedAt,
		Snapshots:    r.Snapshots,
		Shows:        len(r.Shows),
		AdRecords:    r.AdRecordCount(),
		Matched:      r.MatchedCount(),
		MissingTypes: r.MissingNames(),
	}
}
