package config

import (
	"fmt"
	"strconv"
	"time"
)

// Keys lists the dot-notation keys accepted by Get and Set.
var Keys = []string{
	"experiment.window_length",
	"experiment.max_sweeps",
	"experiment.streak_max",
	"experiment.encoder_width",
	"experiment.required_stable_sweeps",
	"experiment.seed",
	"queue.url",
	"queue.token",
	"queue.stream",
	"queue.subject",
	"queue.durable",
	"queue.bucket",
	"queue.ack_wait",
	"queue.max_deliver",
	"queue.retry_delay",
	"worker.output_dir",
	"worker.poll_interval",
	"metrics.addr",
	"logging.level",
}

// Get returns the value for a dot-notation key. The queue token is redacted.
func (c *SdrsweepConfig) Get(key string) (any, bool) {
	switch key {
	case "experiment.window_length":
		return c.Experiment.WindowLength, true
	case "experiment.max_sweeps":
		return c.Experiment.MaxSweeps, true
	case "experiment.streak_max":
		return c.Experiment.StreakMax, true
	case "experiment.encoder_width":
		return c.Experiment.EncoderWidth, true
	case "experiment.required_stable_sweeps":
		return c.Experiment.RequiredStableSweeps, true
	case "experiment.seed":
		return c.Experiment.Seed, true
	case "queue.url":
		return c.Queue.URL, true
	case "queue.token":
		return c.Queue.RedactedToken(), true
	case "queue.stream":
		return c.Queue.Stream, true
	case "queue.subject":
		return c.Queue.Subject, true
	case "queue.durable":
		return c.Queue.Durable, true
	case "queue.bucket":
		return c.Queue.Bucket, true
	case "queue.ack_wait":
		return c.Queue.AckWait.String(), true
	case "queue.max_deliver":
		return c.Queue.MaxDeliver, true
	case "queue.retry_delay":
		return c.Queue.RetryDelay.String(), true
	case "worker.output_dir":
		return c.Worker.OutputDir, true
	case "worker.poll_interval":
		return c.Worker.PollInterval.String(), true
	case "metrics.addr":
		return c.Metrics.Addr, true
	case "logging.level":
		return c.Logging.Level, true
	default:
		return nil, false
	}
}

// Set parses value and assigns it to a dot-notation key. The result is
// validated; on failure the config is left unchanged.
func (c *SdrsweepConfig) Set(key, value string) error {
	next := *c
	if err := next.assign(key, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *SdrsweepConfig) assign(key, value string) error {
	var err error
	switch key {
	case "experiment.window_length":
		c.Experiment.WindowLength, err = strconv.Atoi(value)
	case "experiment.max_sweeps":
		c.Experiment.MaxSweeps, err = strconv.Atoi(value)
	case "experiment.streak_max":
		c.Experiment.StreakMax, err = strconv.ParseFloat(value, 64)
	case "experiment.encoder_width":
		c.Experiment.EncoderWidth, err = strconv.Atoi(value)
	case "experiment.required_stable_sweeps":
		c.Experiment.RequiredStableSweeps, err = strconv.Atoi(value)
	case "experiment.seed":
		c.Experiment.Seed, err = strconv.ParseInt(value, 10, 64)
	case "queue.url":
		c.Queue.URL = value
	case "queue.token":
		c.Queue.Token = value
	case "queue.stream":
		c.Queue.Stream = value
	case "queue.subject":
		c.Queue.Subject = value
	case "queue.durable":
		c.Queue.Durable = value
	case "queue.bucket":
		c.Queue.Bucket = value
	case "queue.ack_wait":
		c.Queue.AckWait, err = time.ParseDuration(value)
	case "queue.max_deliver":
		c.Queue.MaxDeliver, err = strconv.Atoi(value)
	case "queue.retry_delay":
		c.Queue.RetryDelay, err = time.ParseDuration(value)
	case "worker.output_dir":
		c.Worker.OutputDir = value
	case "worker.poll_interval":
		c.Worker.PollInterval, err = time.ParseDuration(value)
	case "metrics.addr":
		c.Metrics.Addr = value
	case "logging.level":
		c.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
