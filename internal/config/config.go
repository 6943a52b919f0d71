// Package config defines the configuration model for the importer. A config
// file is YAML (JSON also decodes, being a YAML subset) with one section per
// pipeline concern, mirroring the order the pipeline runs in:
//
//	source:  { urls: [https://dpupd.sco.ca.gov/04_From_500_To_Beyond.zip] }
//	fetch:   { mode: disk, scratch_dir: /tmp/import, max_redirects: 10 }
//	parser:  { comma: ",", lazy_quotes: false }
//	storage: { kind: postgres, dsn: "postgres://...", conflict_policy: update }
//	runtime: { batch_size: 250, id_policy: deterministic }
//
// Environment variables override file values (see ApplyEnv) so the same file
// can be promoted across environments.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSourceURLs are the California State Controller's Office archives.
var DefaultSourceURLs = []string{
	"https://dpupd.sco.ca.gov/04_From_500_To_Beyond.zip",
	"https://dpupd.sco.ca.gov/03_From_100_To_Below_500.zip",
}

// Batch size bounds. Small batches give fine-grained progress, large ones
// risk exceeding driver parameter limits.
const (
	DefaultBatchSize = 250
	MaxBatchSize     = 1000
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Job names the run for metrics grouping.
	Job string `yaml:"job" json:"job"`

	Source  Source  `yaml:"source" json:"source"`
	Fetch   Fetch   `yaml:"fetch" json:"fetch"`
	Parser  Parser  `yaml:"parser" json:"parser"`
	Storage Storage `yaml:"storage" json:"storage"`
	Runtime Runtime `yaml:"runtime" json:"runtime"`
	Metrics Metrics `yaml:"metrics" json:"metrics"`
	Server  Server  `yaml:"server" json:"server"`
	Log     Log     `yaml:"log" json:"log"`
	Audit   Audit   `yaml:"audit" json:"audit"`
}

// Source lists the archives imported by one run, in load order. Schemes:
// http(s)://, s3://bucket/key, file:// or a bare local path.
type Source struct {
	URLs []string `yaml:"urls" json:"urls"`
}

// Fetch configures archive retrieval.
type Fetch struct {
	// Mode is "memory" (buffer the archive) or "disk" (stream to ScratchDir).
	Mode       string `yaml:"mode" json:"mode"`
	ScratchDir string `yaml:"scratch_dir" json:"scratch_dir"`

	// MaxRedirects caps 3xx hops per archive.
	MaxRedirects int `yaml:"max_redirects" json:"max_redirects"`

	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries         int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff     time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff         time.Duration `yaml:"max_backoff" json:"max_backoff"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`

	// S3Region is used for s3:// sources.
	S3Region string `yaml:"s3_region" json:"s3_region"`
}

// Parser configures the CSV reader.
type Parser struct {
	Comma      string `yaml:"comma" json:"comma"`
	LazyQuotes bool   `yaml:"lazy_quotes" json:"lazy_quotes"`
}

// Storage selects the relational backend.
type Storage struct {
	// Kind is one of the registered backends: postgres, sqlite, mysql, mssql.
	Kind string `yaml:"kind" json:"kind"`
	DSN  string `yaml:"dsn" json:"dsn"`

	// ConflictPolicy is "update" (overwrite existing id) or "ignore" (keep it).
	ConflictPolicy string `yaml:"conflict_policy" json:"conflict_policy"`

	// AutoCreateSchema creates the import tables when missing.
	AutoCreateSchema bool `yaml:"auto_create_schema" json:"auto_create_schema"`

	// ClearSideTables empties discarded_records and import_analysis together
	// with the property table at the start of a run.
	ClearSideTables bool `yaml:"clear_side_tables" json:"clear_side_tables"`

	MaxConns int `yaml:"max_conns" json:"max_conns"`
}

// Runtime controls batching and identifier policy.
type Runtime struct {
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// IDPolicy is "deterministic" (content hash) or "random".
	IDPolicy string `yaml:"id_policy" json:"id_policy"`

	// Analyze computes the id-coverage analysis during the counting pass.
	Analyze bool `yaml:"analyze" json:"analyze"`

	// CountWorkers bounds how many files are counted concurrently.
	CountWorkers int `yaml:"count_workers" json:"count_workers"`

	// CancelPollBatches is how often (in batches) the ledger is re-read to
	// notice a cancel issued from another process. 0 disables polling.
	CancelPollBatches int `yaml:"cancel_poll_batches" json:"cancel_poll_batches"`

	// DiscardBuffer is how many discards are buffered before a flush.
	DiscardBuffer int `yaml:"discard_buffer" json:"discard_buffer"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	// Backend is "pushgateway", "datadog" or "none".
	Backend        string `yaml:"backend" json:"backend"`
	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url"`
	DatadogAddr    string `yaml:"datadog_addr" json:"datadog_addr"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Log configures the root logger.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Audit configures the optional local discard file.
type Audit struct {
	DiscardFile string `yaml:"discard_file" json:"discard_file"`
}

// Default returns a Config populated with production defaults.
func Default() Config {
	return Config{
		Job:    "unclaimed_property_import",
		Source: Source{URLs: append([]string(nil), DefaultSourceURLs...)},
		Fetch: Fetch{
			Mode:           "memory",
			ScratchDir:     os.TempDir(),
			MaxRedirects:   10,
			Timeout:        30 * time.Minute,
			MaxRetries:     3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			S3Region:       "us-east-1",
		},
		Parser: Parser{Comma: ","},
		Storage: Storage{
			Kind:             "postgres",
			ConflictPolicy:   "update",
			AutoCreateSchema: true,
			ClearSideTables:  true,
			MaxConns:         10,
		},
		Runtime: Runtime{
			BatchSize:         DefaultBatchSize,
			IDPolicy:          "deterministic",
			Analyze:           true,
			CountWorkers:      4,
			CancelPollBatches: 20,
			DiscardBuffer:     500,
		},
		Metrics: Metrics{Backend: "none"},
		Server:  Server{Addr: ":8080"},
		Log:     Log{Level: "info", Format: "console"},
	}
}

// Load reads path (when non-empty) over Default() and then applies env
// overrides from the process environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from environment variables looked up via lookup.
// It is parameterized for tests.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("IMPORT_SOURCE_URLS"); ok && strings.TrimSpace(v) != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.Source.URLs = urls
	}
	str("IMPORT_DB_KIND", &cfg.Storage.Kind)
	str("IMPORT_DB_DSN", &cfg.Storage.DSN)
	str("IMPORT_FETCH_MODE", &cfg.Fetch.Mode)
	str("IMPORT_SCRATCH_DIR", &cfg.Fetch.ScratchDir)
	str("METRICS_BACKEND", &cfg.Metrics.Backend)
	str("PUSHGATEWAY_URL", &cfg.Metrics.PushgatewayURL)
	str("DD_AGENT_ADDR", &cfg.Metrics.DatadogAddr)
	str("LOG_LEVEL", &cfg.Log.Level)

	if v, ok := lookup("IMPORT_BATCH_SIZE"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: IMPORT_BATCH_SIZE=%q: %w", v, err)
		}
		cfg.Runtime.BatchSize = n
	}
	return nil
}

// EffectiveBatchSize clamps the configured batch size to [1, MaxBatchSize].
func (r Runtime) EffectiveBatchSize() int {
	switch {
	case r.BatchSize <= 0:
		return DefaultBatchSize
	case r.BatchSize > MaxBatchSize:
		return MaxBatchSize
	}
	return r.BatchSize
}

// CommaRune returns the delimiter rune, defaulting to ','.
func (p Parser) CommaRune() rune {
	if p.Comma == "" {
		return ','
	}
	return []rune(p.Comma)[0]
}

// Label joins the source URLs the way the ledger records them.
func (s Source) Label() string {
	return strings.Join(s.URLs, "; ")
}
