package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kzetxa/getmoneyclaude/internal/config"
	"github.com/kzetxa/getmoneyclaude/internal/datasource"
	"github.com/kzetxa/getmoneyclaude/internal/datasource/file"
	"github.com/kzetxa/getmoneyclaude/internal/datasource/httpds"
	"github.com/kzetxa/getmoneyclaude/internal/datasource/s3ds"
	"github.com/kzetxa/getmoneyclaude/internal/logging"
	"github.com/kzetxa/getmoneyclaude/internal/metrics"
	"github.com/kzetxa/getmoneyclaude/internal/metrics/datadog"
	"github.com/kzetxa/getmoneyclaude/internal/metrics/prompush"
	"github.com/kzetxa/getmoneyclaude/internal/storage"

	// register all backends with the storage factory.
	_ "github.com/kzetxa/getmoneyclaude/internal/storage/all"
)

// app is what a subcommand runs against.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	repo  storage.Repository
	fetch *datasource.Mux
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *rootFlags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Log.Level, f.logLevel)
	set(&cfg.Log.Format, f.logFormat)
	set(&cfg.Storage.Kind, f.dbKind)
	set(&cfg.Storage.DSN, f.dbDSN)

	var urls []string
	if f.urlList != "" {
		list, err := file.ReadList(f.urlList)
		if err != nil {
			return cfg, err
		}
		urls = append(urls, list...)
	}
	urls = append(urls, f.urls...)
	if len(urls) > 0 {
		cfg.Source.URLs = urls
	}
	return cfg, nil
}

// checkConfig prints every issue to w and fails on error-severity ones.
func checkConfig(w io.Writer, cfg config.Config) error {
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if err := config.Errors(issues); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	return nil
}

// withApp loads configuration, opens the store and the fetchers, and runs
// fn. Resources are released when fn returns.
func withApp(f *rootFlags, fn func(cmd *cobra.Command, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(f)
		if err != nil {
			return err
		}
		if err := checkConfig(cmd.ErrOrStderr(), cfg); err != nil {
			return err
		}

		log := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format).
			With().Str("command", cmd.Name()).Logger()

		flush := setupMetrics(cfg, log)
		defer flush()

		repo, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer repo.Close()

		mux, err := newFetcher(cfg, logging.Component(log, "fetch"))
		if err != nil {
			return err
		}
		return fn(cmd, &app{cfg: cfg, log: log, repo: repo, fetch: mux})
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.Repository, error) {
	repo, err := storage.New(ctx, storage.Config{
		Kind:     cfg.Storage.Kind,
		DSN:      cfg.Storage.DSN,
		MaxConns: cfg.Storage.MaxConns,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Storage.AutoCreateSchema {
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, err
		}
	}
	return repo, nil
}

// newFetcher registers one fetcher per supported scheme. The S3 session is
// only created when a source needs it.
func newFetcher(cfg config.Config, log zerolog.Logger) (*datasource.Mux, error) {
	mux := datasource.NewMux()

	client := httpds.NewClient(httpds.Config{
		Timeout:            cfg.Fetch.Timeout,
		MaxRetries:         cfg.Fetch.MaxRetries,
		InitialBackoff:     cfg.Fetch.InitialBackoff,
		MaxBackoff:         cfg.Fetch.MaxBackoff,
		InsecureSkipVerify: cfg.Fetch.InsecureSkipVerify,
		Log:                log,
	})
	hf := httpds.NewFetcher(client, httpds.FetchOptions{
		Mode:         cfg.Fetch.Mode,
		ScratchDir:   cfg.Fetch.ScratchDir,
		MaxRedirects: cfg.Fetch.MaxRedirects,
	}, log)
	mux.Handle("http", hf)
	mux.Handle("https", hf)
	mux.Handle("file", file.Local{})

	for _, u := range cfg.Source.URLs {
		if datasource.Scheme(u) != "s3" {
			continue
		}
		sf, err := s3ds.New(s3ds.Options{
			Region:     cfg.Fetch.S3Region,
			Mode:       cfg.Fetch.Mode,
			ScratchDir: cfg.Fetch.ScratchDir,
		}, log)
		if err != nil {
			return nil, err
		}
		mux.Handle("s3", sf)
		break
	}
	return mux, nil
}

// setupMetrics installs the configured backend and returns its flush func.
func setupMetrics(cfg config.Config, log zerolog.Logger) func() {
	nop := func() {}
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			log.Warn().Err(err).Msg("metrics: pushgateway backend unavailable; using nop")
			return nop
		}
		metrics.SetBackend(b)
		log.Debug().Str("url", cfg.Metrics.PushgatewayURL).Str("job", cfg.Job).Msg("metrics: pushgateway enabled")

	case "datadog":
		addr := cfg.Metrics.DatadogAddr
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "getmoney.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err != nil {
			log.Warn().Err(err).Msg("metrics: datadog backend unavailable; using nop")
			return nop
		}
		metrics.SetBackend(b)
		log.Debug().Str("addr", addr).Msg("metrics: datadog enabled")
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn().Err(err).Msg("metrics: flush")
			}
			_ = b.Close()
		}

	case "", "none":
		return nop

	default:
		log.Warn().Str("backend", cfg.Metrics.Backend).Msg("metrics: unknown backend; metrics disabled")
		return nop
	}
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics: flush")
		}
	}
}
