package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultInputFile       = "data.jsonl"
	DefaultOutputFile      = "data_with_gpt.jsonl"
	DefaultTrialOutputFile = "data_with_gpt_trial.jsonl"
	DefaultCheckpointFile  = "gpt_processing_checkpoint.json"
	DefaultCountsFile      = "batch_count.json"
	DefaultTrialCountsFile = "batch_count_trial.json"

	CheckpointBackendFile   = "file"
	CheckpointBackendSQLite = "sqlite"

	SelectionRandom     = "random"
	SelectionRoundRobin = "round-robin"
)

// Config holds all application configuration
type Config struct {
	// Files
	InputFile      string
	OutputFile     string
	CheckpointFile string
	CountsFile     string
	LogDir         string

	// Mode
	Trial          bool
	TrialBatchSize int
	FullBatchSize  int

	// Retry settings
	MaxRetries int
	RetryDelay time.Duration
	TaskDelay  time.Duration

	// Model settings
	ConfigFile      string
	EndpointLabels  []string
	SelectionPolicy string
	MaxImages       int
	Seed            int64
	RequestTimeout  time.Duration

	// Checkpoint settings
	CheckpointBackend string

	// Survey settings
	ShuffleSeed int64
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		InputFile:         DefaultInputFile,
		CheckpointFile:    DefaultCheckpointFile,
		LogDir:            "logs",
		TrialBatchSize:    5,
		FullBatchSize:     30,
		MaxRetries:        3,
		RetryDelay:        5 * time.Second,
		TaskDelay:         time.Second,
		SelectionPolicy:   SelectionRandom,
		MaxImages:         2,
		Seed:              42,
		RequestTimeout:    2 * time.Minute,
		CheckpointBackend: CheckpointBackendFile,
		ShuffleSeed:       42,
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if input := os.Getenv("SURVEY_INPUT_FILE"); input != "" {
		c.InputFile = input
	}

	if output := os.Getenv("SURVEY_OUTPUT_FILE"); output != "" {
		c.OutputFile = output
	}

	if checkpoint := os.Getenv("SURVEY_CHECKPOINT_FILE"); checkpoint != "" {
		c.CheckpointFile = checkpoint
	}

	if backend := os.Getenv("SURVEY_CHECKPOINT_BACKEND"); backend != "" {
		c.CheckpointBackend = backend
	}

	if configFile := os.Getenv("SURVEY_CONFIG_FILE"); configFile != "" {
		c.ConfigFile = configFile
	}

	if labels := os.Getenv("SURVEY_ENDPOINTS"); labels != "" {
		c.EndpointLabels = splitList(labels)
	}

	if policy := os.Getenv("SURVEY_SELECTION_POLICY"); policy != "" {
		c.SelectionPolicy = policy
	}

	if retries := os.Getenv("SURVEY_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			c.MaxRetries = r
		}
	}

	if delay := os.Getenv("SURVEY_RETRY_DELAY"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil {
			c.RetryDelay = time.Duration(d) * time.Millisecond
		}
	}

	if delay := os.Getenv("SURVEY_TASK_DELAY"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil {
			c.TaskDelay = time.Duration(d) * time.Millisecond
		}
	}

	if timeout := os.Getenv("SURVEY_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.RequestTimeout = time.Duration(t) * time.Second
		}
	}

	if logDir := os.Getenv("SURVEY_LOG_DIR"); logDir != "" {
		c.LogDir = logDir
	}
}

// ApplyMode fills in the mode dependent file names that were not set explicitly.
func (c *Config) ApplyMode() {
	if c.OutputFile == "" {
		c.OutputFile = DefaultOutputFile
		if c.Trial {
			c.OutputFile = DefaultTrialOutputFile
		}
	}

	if c.CountsFile == "" {
		c.CountsFile = DefaultCountsFile
		if c.Trial {
			c.CountsFile = DefaultTrialCountsFile
		}
	}
}

// TrialTaskLimit is the number of tasks a trial run keeps: exactly two survey batches.
func (c *Config) TrialTaskLimit() int {
	return 2 * c.TrialBatchSize
}

// SurveyBatchSize returns the number of tasks per survey batch for the current mode.
func (c *Config) SurveyBatchSize() int {
	if c.Trial {
		return c.TrialBatchSize
	}
	return c.FullBatchSize
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file cannot be empty")
	}

	if c.CheckpointFile == "" {
		return fmt.Errorf("checkpoint file cannot be empty")
	}

	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got: %d", c.MaxRetries)
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be non-negative, got: %s", c.RetryDelay)
	}

	if c.TaskDelay < 0 {
		return fmt.Errorf("task delay must be non-negative, got: %s", c.TaskDelay)
	}

	if c.TrialBatchSize <= 0 || c.FullBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive, got trial=%d full=%d", c.TrialBatchSize, c.FullBatchSize)
	}

	if c.TrialBatchSize >= c.FullBatchSize {
		return fmt.Errorf("trial batch size (%d) must be smaller than full batch size (%d)", c.TrialBatchSize, c.FullBatchSize)
	}

	if c.MaxImages < 0 {
		return fmt.Errorf("max images must be non-negative, got: %d", c.MaxImages)
	}

	switch c.SelectionPolicy {
	case SelectionRandom, SelectionRoundRobin:
	default:
		return fmt.Errorf("unknown endpoint selection policy: %q", c.SelectionPolicy)
	}

	switch c.CheckpointBackend {
	case CheckpointBackendFile, CheckpointBackendSQLite:
	default:
		return fmt.Errorf("unknown checkpoint backend: %q", c.CheckpointBackend)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
