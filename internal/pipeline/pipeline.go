// Package pipeline runs the sheet and ad-report stages end to end and
// produces one Result per run.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/adreport"
	"github.com/sells-group/showfunnel/internal/consolidate"
	"github.com/sells-group/showfunnel/internal/funnel"
	"github.com/sells-group/showfunnel/internal/match"
	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/sheet"
	"github.com/sells-group/showfunnel/internal/store"
)

// Input is what one run consumes. Ads may be empty, in which case only the
// sheet stages run.
type Input struct {
	Sheet sheet.Source
	Ads   []adreport.Upload
}

// Pipeline orchestrates sheet loading, consolidation, ad processing,
// matching and funnel aggregation.
type Pipeline struct {
	loader       *sheet.Loader
	processor    *adreport.Processor
	consolidator *consolidate.Consolidator
	store        store.Store
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore persists every run to s.
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithClock overrides the wall clock used for days-to-show and the timeline.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. A nil processor uses the built-in aliases.
func New(loader *sheet.Loader, processor *adreport.Processor, opts ...Option) *Pipeline {
	if processor == nil {
		processor = adreport.NewProcessor(nil, 0)
	}
	p := &Pipeline{loader: loader, processor: processor, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.consolidator = &consolidate.Consolidator{Now: p.now}
	return p
}

// Run executes one pipeline pass. When required ad report types are missing
// the Result is still returned, together with a *adreport.MissingTypesError.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	res := &Result{
		RunID:     uuid.New().String(),
		Source:    in.Sheet.Name,
		StartedAt: p.now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", res.RunID), zap.String("source", res.Source))
	log.Info("pipeline: starting run", zap.Int("ad_files", len(in.Ads)))

	if p.store != nil {
		if _, err := p.store.CreateRun(ctx, res.RunID, res.Source); err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
	}

	start := time.Now()
	err := p.execute(ctx, in, res)

	var missing *adreport.MissingTypesError
	partial := errors.As(err, &missing)
	if err != nil && !partial {
		log.Error("pipeline: run failed", zap.Error(err))
		p.finish(ctx, log, res, err)
		return nil, err
	}

	p.finish(ctx, log, res, nil)
	log.Info("pipeline: run complete",
		zap.Int("shows", len(res.Shows)),
		zap.Int("ad_records", res.AdRecordCount()),
		zap.Int("matched", res.MatchedCount()),
		zap.Int("funnels", len(res.Funnels)),
		zap.Strings("missing_types", res.MissingNames()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, err
}

func (p *Pipeline) execute(ctx context.Context, in Input, res *Result) error {
	if p.loader == nil {
		return eris.New("pipeline: no sheet loader configured")
	}
	parsed, err := p.loader.Load(ctx, in.Sheet)
	if err != nil {
		return eris.Wrap(err, "pipeline: load sheet")
	}
	res.SheetStats = parsed.Stats
	res.Snapshots = len(parsed.Snapshots)

	cons := p.consolidator.Consolidate(parsed.Snapshots)
	res.Shows = cons.Shows
	res.ShowsByID = cons.ByID()
	res.Index = cons.Index
	res.Collisions = cons.Index.Collisions()
	for _, c := range res.Collisions {
		zap.L().Warn("pipeline: show index collision, keeping first registration",
			zap.String("key", c.Key),
			zap.Int("sequence", c.Sequence),
			zap.String("kept", c.Kept),
			zap.String("dropped", c.Dropped),
		)
	}

	var adErr error
	if len(in.Ads) > 0 {
		up, err := p.processor.Process(ctx, in.Ads)
		var missing *adreport.MissingTypesError
		if err != nil && !errors.As(err, &missing) {
			return eris.Wrap(err, "pipeline: process ads")
		}
		adErr = err
		res.Tables = up.Tables
		res.Detections = up.Detections
		res.Missing = up.Missing
		res.Issues = up.Issues
		res.FileErrors = up.FileErrors

		m := match.New(cons.Index)
		res.MatchStats = make(map[model.DatasetType]match.Stats, len(up.Tables))
		for _, dt := range model.RequiredDatasets() {
			if t, ok := up.Tables[dt]; ok {
				res.MatchStats[dt] = m.MatchAll(t.Records)
			}
		}
	}

	// The three report types break down the same spend, so only the days
	// table feeds the funnel.
	res.Funnels = funnel.Aggregate(res.Records(model.DatasetDays))
	res.Performance = funnel.Integrate(res.Shows, res.Funnels)
	res.Unlinked = funnel.Unlinked(res.Shows, res.Funnels)
	res.Summary = consolidate.Summarize(res.Shows)
	res.AsOf = p.now()
	res.Timeline = consolidate.Timeline(res.Shows, res.AsOf)
	return adErr
}

// finish records the run outcome. Store failures are logged, not returned,
// so a computed Result is never lost to a persistence problem.
func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, res *Result, runErr error) {
	if p.store == nil {
		return
	}
	run := res.Run()
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	} else {
		if err := p.store.SaveShows(ctx, res.RunID, res.Shows); err != nil {
			log.Warn("pipeline: failed to save shows", zap.Error(err))
		}
		if err := p.store.SaveFunnels(ctx, res.RunID, res.Funnels); err != nil {
			log.Warn("pipeline: failed to save funnels", zap.Error(err))
		}
	}
	if err := p.store.FinishRun(ctx, run); err != nil {
		log.Warn("pipeline: failed to finish run", zap.Error(err))
	}
}
