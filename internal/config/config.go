// Package config provides unified configuration loading for sdrsweep.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/sdrsweep/internal/experiment"
	"github.com/nvandessel/sdrsweep/internal/queue"
	"github.com/nvandessel/sdrsweep/internal/store"
	"github.com/nvandessel/sdrsweep/internal/worker"
)

// FileName is the configuration file inside the global sdrsweep directory.
const FileName = "config.yaml"

// SdrsweepConfig contains all sdrsweep configuration settings.
type SdrsweepConfig struct {
	// Experiment controls the convergence run.
	Experiment ExperimentConfig `json:"experiment" yaml:"experiment"`

	// Queue configures the NATS request queue and output bucket.
	Queue QueueConfig `json:"queue" yaml:"queue"`

	// Worker configures the queue consumer.
	Worker WorkerConfig `json:"worker" yaml:"worker"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ExperimentConfig mirrors experiment.Config.
type ExperimentConfig struct {
	WindowLength         int     `json:"window_length" yaml:"window_length"`
	MaxSweeps            int     `json:"max_sweeps" yaml:"max_sweeps"`
	StreakMax            float64 `json:"streak_max" yaml:"streak_max"`
	EncoderWidth         int     `json:"encoder_width" yaml:"encoder_width"`
	RequiredStableSweeps int     `json:"required_stable_sweeps" yaml:"required_stable_sweeps"`
	Seed                 int64   `json:"seed" yaml:"seed"`
}

// QueueConfig configures the NATS connection.
type QueueConfig struct {
	// URL of the NATS server.
	URL string `json:"url" yaml:"url"`

	// Token authenticates to NATS. Supports ${VAR} syntax for env vars.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	Stream     string        `json:"stream" yaml:"stream"`
	Subject    string        `json:"subject" yaml:"subject"`
	Durable    string        `json:"durable" yaml:"durable"`
	Bucket     string        `json:"bucket" yaml:"bucket"`
	AckWait    time.Duration `json:"ack_wait" yaml:"ack_wait"`
	MaxDeliver int           `json:"max_deliver" yaml:"max_deliver"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// RedactedToken returns the token with most characters masked.
// Returns "" for empty tokens and "(set)" for tokens shorter than 12 chars.
func (c QueueConfig) RedactedToken() string {
	if c.Token == "" {
		return ""
	}
	if len(c.Token) < 12 {
		return "(set)"
	}
	return c.Token[:4] + "..." + c.Token[len(c.Token)-4:]
}

// String implements fmt.Stringer to prevent accidental token logging.
func (c QueueConfig) String() string {
	return fmt.Sprintf("QueueConfig{URL:%s, Stream:%s, Token:%s}", c.URL, c.Stream, c.RedactedToken())
}

// WorkerConfig configures the queue consumer.
type WorkerConfig struct {
	// OutputDir receives report files before upload.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// PollInterval is the wait after an empty receive.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9090". Empty disables it.
	Addr string `json:"addr" yaml:"addr"`
}

// LoggingConfig configures sdrsweep's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to .sdrsweep/decisions.jsonl.
	// "trace" additionally logs every input presentation.
	Level string `json:"level" yaml:"level"`
}

// Default returns a SdrsweepConfig with sensible defaults.
func Default() *SdrsweepConfig {
	exp := experiment.DefaultConfig()
	q := queue.DefaultConfig()
	return &SdrsweepConfig{
		Experiment: ExperimentConfig{
			WindowLength:         exp.WindowLength,
			MaxSweeps:            exp.MaxSweeps,
			StreakMax:            exp.StreakMax,
			EncoderWidth:         exp.EncoderWidth,
			RequiredStableSweeps: exp.RequiredStableSweeps,
			Seed:                 exp.Seed,
		},
		Queue: QueueConfig{
			URL:        q.URL,
			Stream:     q.Stream,
			Subject:    q.Subject,
			Durable:    q.Durable,
			Bucket:     q.Bucket,
			AckWait:    q.AckWait,
			MaxDeliver: q.MaxDeliver,
			RetryDelay: q.RetryDelay,
		},
		Worker: WorkerConfig{
			OutputDir:    worker.DefaultOutputDir(),
			PollInterval: worker.DefaultPollInterval,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.sdrsweep/config.yaml.
func DefaultPath() (string, error) {
	dir, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.sdrsweep/config.yaml -> environment variables
func Load() (*SdrsweepConfig, error) {
	config := Default()

	if path, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*SdrsweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Queue.Token = expandEnvVars(config.Queue.Token)

	return config, nil
}

// Save writes the configuration as YAML to path with owner-only permissions.
func (c *SdrsweepConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *SdrsweepConfig) Validate() error {
	if c.Experiment.WindowLength <= 0 {
		return fmt.Errorf("window_length must be positive, got %d", c.Experiment.WindowLength)
	}
	if c.Experiment.MaxSweeps <= c.Experiment.WindowLength {
		return fmt.Errorf("max_sweeps (%d) must exceed window_length (%d)", c.Experiment.MaxSweeps, c.Experiment.WindowLength)
	}
	if c.Experiment.StreakMax <= 0 {
		return fmt.Errorf("streak_max must be positive, got %v", c.Experiment.StreakMax)
	}
	if c.Experiment.EncoderWidth <= 0 {
		return fmt.Errorf("encoder_width must be positive, got %d", c.Experiment.EncoderWidth)
	}
	if c.Experiment.RequiredStableSweeps <= 0 {
		return fmt.Errorf("required_stable_sweeps must be positive, got %d", c.Experiment.RequiredStableSweeps)
	}

	if c.Queue.URL == "" {
		return fmt.Errorf("queue url must not be empty")
	}
	if c.Queue.AckWait < 0 || c.Queue.RetryDelay < 0 {
		return fmt.Errorf("queue durations must be non-negative")
	}
	if c.Queue.MaxDeliver == 0 || c.Queue.MaxDeliver < -1 {
		return fmt.Errorf("max_deliver must be positive or -1 for unlimited, got %d", c.Queue.MaxDeliver)
	}

	if c.Worker.PollInterval < 0 {
		return fmt.Errorf("poll_interval must be non-negative, got %v", c.Worker.PollInterval)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// ExperimentSettings converts the experiment section for experiment.New.
func (c *SdrsweepConfig) ExperimentSettings() experiment.Config {
	return experiment.Config{
		WindowLength:         c.Experiment.WindowLength,
		MaxSweeps:            c.Experiment.MaxSweeps,
		StreakMax:            c.Experiment.StreakMax,
		EncoderWidth:         c.Experiment.EncoderWidth,
		RequiredStableSweeps: c.Experiment.RequiredStableSweeps,
		Seed:                 c.Experiment.Seed,
	}
}

// QueueSettings converts the queue section for queue.Connect.
func (c *SdrsweepConfig) QueueSettings() queue.Config {
	q := queue.DefaultConfig()
	q.URL = c.Queue.URL
	q.Token = c.Queue.Token
	q.Stream = c.Queue.Stream
	q.Subject = c.Queue.Subject
	q.Durable = c.Queue.Durable
	q.Bucket = c.Queue.Bucket
	q.AckWait = c.Queue.AckWait
	q.MaxDeliver = c.Queue.MaxDeliver
	q.RetryDelay = c.Queue.RetryDelay
	return q
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *SdrsweepConfig) {
	if v := os.Getenv("SDRSWEEP_WINDOW_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Experiment.WindowLength = n
		}
	}
	if v := os.Getenv("SDRSWEEP_MAX_SWEEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Experiment.MaxSweeps = n
		}
	}
	if v := os.Getenv("SDRSWEEP_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Experiment.Seed = n
		}
	}

	if v := os.Getenv("NATS_URL"); v != "" {
		config.Queue.URL = v
	}
	if v := os.Getenv("NATS_TOKEN"); v != "" {
		config.Queue.Token = v
	}

	if v := os.Getenv("OUTPUT_FILE_PATH"); v != "" {
		config.Worker.OutputDir = v
	}
	if v := os.Getenv("SDRSWEEP_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Worker.PollInterval = d
		}
	}

	if v := os.Getenv("SDRSWEEP_METRICS_ADDR"); v != "" {
		config.Metrics.Addr = v
	}

	if v := os.Getenv("SDRSWEEP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
