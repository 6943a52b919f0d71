package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced but does not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "source.urls[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// KnownStorageKinds lists the backends shipped in storage/all.
var KnownStorageKinds = []string{"postgres", "sqlite", "mysql", "mssql"}

// Validate performs static validation of cfg. It does not mutate cfg.
// Callers decide whether warnings are fatal.
func Validate(cfg Config) []Issue {
	var issues []Issue
	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, Issue{SeverityError, "job", "job must not be empty; it labels metrics"})
	}
	issues = append(issues, validateSource(cfg.Source)...)
	issues = append(issues, validateFetch(cfg.Fetch)...)
	issues = append(issues, validateParser(cfg.Parser)...)
	issues = append(issues, validateStorage(cfg.Storage)...)
	issues = append(issues, validateRuntime(cfg.Runtime)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

// Errors joins the error-severity issues into one error, or nil.
func Errors(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if len(s.URLs) == 0 {
		return append(issues, Issue{SeverityError, "source.urls", "at least one archive url is required"})
	}
	for i, raw := range s.URLs {
		path := fmt.Sprintf("source.urls[%d]", i)
		if strings.TrimSpace(raw) == "" {
			issues = append(issues, Issue{SeverityError, path, "url must not be empty"})
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			issues = append(issues, Issue{SeverityError, path, fmt.Sprintf("invalid url: %v", err)})
			continue
		}
		switch u.Scheme {
		case "http", "https", "s3", "file", "":
		default:
			issues = append(issues, Issue{SeverityError, path, fmt.Sprintf("unsupported scheme %q", u.Scheme)})
		}
		if u.Scheme == "http" {
			issues = append(issues, Issue{SeverityWarning, path, "plain http source; prefer https"})
		}
	}
	return issues
}

func validateFetch(f Fetch) []Issue {
	var issues []Issue
	switch f.Mode {
	case "memory", "disk":
	default:
		issues = append(issues, Issue{SeverityError, "fetch.mode", fmt.Sprintf("mode must be memory or disk, got %q", f.Mode)})
	}
	if f.Mode == "disk" && strings.TrimSpace(f.ScratchDir) == "" {
		issues = append(issues, Issue{SeverityError, "fetch.scratch_dir", "disk mode requires a scratch directory"})
	}
	if f.MaxRedirects < 0 {
		issues = append(issues, Issue{SeverityError, "fetch.max_redirects", "must be >= 0"})
	}
	if f.MaxRetries < 0 {
		issues = append(issues, Issue{SeverityError, "fetch.max_retries", "must be >= 0"})
	}
	if f.Timeout < 0 {
		issues = append(issues, Issue{SeverityError, "fetch.timeout", "must be >= 0"})
	}
	if f.InsecureSkipVerify {
		issues = append(issues, Issue{SeverityWarning, "fetch.insecure_skip_verify", "TLS verification is disabled"})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if n := len([]rune(p.Comma)); n > 1 {
		issues = append(issues, Issue{SeverityError, "parser.comma", "comma must be a single character"})
	}
	if p.Comma == "\"" || p.Comma == "\n" || p.Comma == "\r" {
		issues = append(issues, Issue{SeverityError, "parser.comma", fmt.Sprintf("invalid delimiter %q", p.Comma)})
	}
	if p.LazyQuotes {
		issues = append(issues, Issue{SeverityWarning, "parser.lazy_quotes", "lazy quotes accept malformed rows silently"})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	known := false
	for _, k := range KnownStorageKinds {
		if s.Kind == k {
			known = true
		}
	}
	if !known {
		issues = append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("unknown storage kind %q; want one of %s", s.Kind, strings.Join(KnownStorageKinds, ", "))})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "dsn must not be empty"})
	}
	switch s.ConflictPolicy {
	case "update", "ignore":
	default:
		issues = append(issues, Issue{SeverityError, "storage.conflict_policy", fmt.Sprintf("policy must be update or ignore, got %q", s.ConflictPolicy)})
	}
	if s.MaxConns < 0 {
		issues = append(issues, Issue{SeverityError, "storage.max_conns", "must be >= 0"})
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.BatchSize <= 0 || r.BatchSize > MaxBatchSize {
		issues = append(issues, Issue{SeverityWarning, "runtime.batch_size",
			fmt.Sprintf("batch_size %d is outside [1,%d]; %d will be used", r.BatchSize, MaxBatchSize, r.EffectiveBatchSize())})
	}
	switch r.IDPolicy {
	case "deterministic", "random":
	default:
		issues = append(issues, Issue{SeverityError, "runtime.id_policy", fmt.Sprintf("policy must be deterministic or random, got %q", r.IDPolicy)})
	}
	if r.IDPolicy == "random" {
		issues = append(issues, Issue{SeverityWarning, "runtime.id_policy", "random ids make re-imports append instead of upsert"})
	}
	if r.CountWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.count_workers", "must be >= 0"})
	}
	if r.CancelPollBatches < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.cancel_poll_batches", "must be >= 0"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires a url"})
		}
	case "datadog":
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend", fmt.Sprintf("unknown backend %q; metrics are disabled", m.Backend)})
	}
	return issues
}
