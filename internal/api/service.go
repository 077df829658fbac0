// Package api serves the latest pipeline result over HTTP.
package api

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sells-group/showfunnel/internal/adreport"
	"github.com/sells-group/showfunnel/internal/pipeline"
	"github.com/sells-group/showfunnel/internal/sheet"
)

// Service owns the current Result. Readers load it without locking; runs
// are serialized and swap in a new Result when they finish.
type Service struct {
	pipeline *pipeline.Pipeline
	source   sheet.Source

	mu      sync.Mutex
	ads     []adreport.Upload
	current atomic.Pointer[pipeline.Result]
}

// NewService creates a Service that reloads the sheet from src.
func NewService(p *pipeline.Pipeline, src sheet.Source) *Service {
	return &Service{pipeline: p, source: src}
}

// Current returns the latest result, or nil before the first run.
func (s *Service) Current() *pipeline.Result {
	return s.current.Load()
}

// Refresh reloads the sheet and re-applies the most recent ad upload.
func (s *Service) Refresh(ctx context.Context) (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, s.ads)
}

// Upload replaces the ad reports and reruns the pipeline. A missing report
// type still publishes the partial result.
func (s *Service) Upload(ctx context.Context, ads []adreport.Upload) (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.run(ctx, ads)
	if res != nil {
		s.ads = ads
	}
	return res, err
}

func (s *Service) run(ctx context.Context, ads []adreport.Upload) (*pipeline.Result, error) {
	res, err := s.pipeline.Run(ctx, pipeline.Input{Sheet: s.source, Ads: ads})
	if res != nil {
		s.current.Store(res)
	}
	return res, err
}
