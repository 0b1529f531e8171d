package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dnnyngyen/phasecore/internal/config"
	"github.com/dnnyngyen/phasecore/internal/fetch"
	"github.com/dnnyngyen/phasecore/internal/obslog"
	"github.com/dnnyngyen/phasecore/internal/orchestrator"
	"github.com/dnnyngyen/phasecore/internal/ratelimit"
	"github.com/dnnyngyen/phasecore/internal/registry"
	"github.com/dnnyngyen/phasecore/internal/session"
	"github.com/dnnyngyen/phasecore/internal/ssrf"
)

// loadConfig resolves layered configuration, applying the persistent flags
// as the highest-precedence overrides.
func loadConfig() (*config.Config, error) {
	overrides := &config.Config{Output: output, Verbose: verbose, BaseDir: baseDirOpt}
	return config.Load(overrides)
}

// buildOrchestrator wires one Orchestrator per invocation from resolved
// configuration: this is a one-shot CLI process, not a long-lived server,
// so there is no pooling or reuse to manage.
func buildOrchestrator(cfg *config.Config, logger *zap.Logger) (*orchestrator.Orchestrator, error) {
	store, err := session.New(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	catalog, err := registry.LoadOverlay(cfg.Knowledge.RegistryOverlayPath, registry.StaticEntries)
	if err != nil {
		return nil, fmt.Errorf("load registry overlay: %w", err)
	}

	guard := ssrf.New(cfg.SSRF.Enabled, cfg.SSRF.AllowedHosts)
	limiter := ratelimit.New()
	fetcher := fetch.New(&http.Client{}, guard, limiter, fetch.Options{
		MaxConcurrency:   cfg.Knowledge.MaxConcurrency,
		Timeout:          time.Duration(cfg.Knowledge.TimeoutMS) * time.Millisecond,
		MaxRetries:       cfg.Knowledge.MaxRetries,
		RetryBaseDelay:   time.Duration(cfg.Knowledge.RetryBaseDelayMS) * time.Millisecond,
		MaxContentLength: cfg.Knowledge.MaxContentLength,
		MaxTruncateChars: cfg.Knowledge.MaxTruncateChars,
		UserAgent:        cfg.Knowledge.UserAgent,
		RateLimitPerMin:  cfg.RateLimit.RequestsPerMinute,
		RateLimitWindow:  time.Duration(cfg.RateLimit.WindowMS) * time.Millisecond,
	})

	return orchestrator.New(store, catalog, fetcher, cfg, logger), nil
}

func buildLogger(cfg *config.Config) *zap.Logger {
	logger, err := obslog.New(cfg.Verbose)
	if err != nil {
		return obslog.Noop()
	}
	return logger
}
