package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/showfunnel/internal/adreport"
	"github.com/sells-group/showfunnel/internal/fetcher"
	"github.com/sells-group/showfunnel/internal/fx"
	"github.com/sells-group/showfunnel/internal/pipeline"
	"github.com/sells-group/showfunnel/internal/sheet"
	"github.com/sells-group/showfunnel/internal/store"
)

// appEnv holds the wired components shared by the commands.
type appEnv struct {
	Store    store.Store // nil unless requested
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the fetcher, rate cache, ad processor and pipeline. With
// persist set it also opens and migrates the store.
func initEnv(ctx context.Context, mode string, persist bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   cfg.Fetch.UserAgent,
		MaxRetries:  cfg.Fetch.MaxRetries,
		DefaultRate: rate.Limit(cfg.Fetch.RatePerSec),
	})

	var rates fx.RateSource
	if !cfg.FX.Disabled {
		rates = fx.NewHTTPSource(f, cfg.FX.URL)
	}
	cache := fx.NewCache(rates,
		fx.WithTTL(time.Duration(cfg.FX.TTLHours)*time.Hour),
		fx.WithTimeout(time.Duration(cfg.FX.TimeoutSecs)*time.Second),
	)

	resolver, err := initResolver()
	if err != nil {
		return nil, err
	}

	loader := sheet.NewLoader(f, cache, time.Duration(cfg.Sheet.TimeoutSecs)*time.Second)
	processor := adreport.NewProcessor(resolver, cfg.Ads.MaxConcurrentFiles)

	env := &appEnv{}
	var opts []pipeline.Option
	if persist {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
		opts = append(opts, pipeline.WithStore(st))
	}
	env.Pipeline = pipeline.New(loader, processor, opts...)
	return env, nil
}

func initResolver() (*adreport.Resolver, error) {
	if cfg.Ads.AliasFile == "" {
		return adreport.NewResolver(), nil
	}
	overlay, err := adreport.LoadAliasOverlay(cfg.Ads.AliasFile)
	if err != nil {
		return nil, err
	}
	return adreport.NewResolver(overlay), nil
}

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

// sheetSource reads a local export when path is set and falls back to the
// configured sheet URL.
func sheetSource(path string) (sheet.Source, error) {
	if path == "" {
		return sheet.URLSource(cfg.Sheet.URL), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sheet.Source{}, eris.Wrapf(err, "read sheet file %s", path)
	}
	return sheet.BytesSource(filepath.Base(path), data), nil
}

// readUploads loads ad report files from disk.
func readUploads(paths []string) ([]adreport.Upload, error) {
	uploads := make([]adreport.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "read ad report %s", p)
		}
		uploads = append(uploads, adreport.Upload{Name: filepath.Base(p), Data: data})
	}
	return uploads, nil
}
