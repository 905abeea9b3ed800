package services

import (
	"context"
	"fmt"

	"github.com/kelsos/design-survey/internal/batch"
	"github.com/kelsos/design-survey/internal/checkpoint"
	"github.com/kelsos/design-survey/internal/client"
	"github.com/kelsos/design-survey/internal/config"
	"github.com/kelsos/design-survey/internal/logger"
	"github.com/kelsos/design-survey/internal/processor"
)

// PrefillService wires the model client, processor and checkpoint store for one prefill run
type PrefillService struct {
	config    *config.Config
	endpoints []config.Endpoint
	store     checkpoint.Store
	driver    *batch.Driver
}

// PrefillOptions carries dependencies that are normally built from the configuration
type PrefillOptions struct {
	Observer      batch.Observer
	ClientOptions client.Options
}

// NewPrefillService creates a prefill service with all dependencies
func NewPrefillService(ctx context.Context, cfg *config.Config, opts PrefillOptions) (*PrefillService, error) {
	configPath, err := config.FindConfigFile(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}

	endpoints, err := config.LoadEndpoints(configPath, cfg.EndpointLabels)
	if err != nil {
		return nil, err
	}
	logger.Info("Using %d endpoint(s) from %s", len(endpoints), configPath)

	selector, err := client.NewSelector(cfg.SelectionPolicy, endpoints, nil)
	if err != nil {
		return nil, err
	}

	clientOpts := opts.ClientOptions
	clientOpts.MaxImages = cfg.MaxImages
	clientOpts.Timeout = cfg.RequestTimeout
	seed := cfg.Seed
	clientOpts.Seed = &seed

	modelClient, err := client.NewAzureClient(selector, clientOpts)
	if err != nil {
		return nil, err
	}

	store, err := OpenCheckpointStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	trialLimit := 0
	if cfg.Trial {
		trialLimit = cfg.TrialTaskLimit()
	}

	driver := batch.NewDriver(
		processor.New(modelClient, cfg.MaxRetries, cfg.RetryDelay),
		store,
		batch.Options{
			InputFile:  cfg.InputFile,
			OutputFile: cfg.OutputFile,
			TrialLimit: trialLimit,
			TaskDelay:  cfg.TaskDelay,
		},
		opts.Observer,
	)

	return &PrefillService{
		config:    cfg,
		endpoints: endpoints,
		store:     store,
		driver:    driver,
	}, nil
}

// OpenCheckpointStore opens the checkpoint backend selected in the configuration
func OpenCheckpointStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, error) {
	switch cfg.CheckpointBackend {
	case config.CheckpointBackendFile, "":
		return checkpoint.NewFileStore(cfg.CheckpointFile), nil
	case config.CheckpointBackendSQLite:
		return checkpoint.NewSQLiteStore(ctx, cfg.CheckpointFile)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend: %q", cfg.CheckpointBackend)
	}
}

// Endpoints returns the endpoints requests are spread across
func (s *PrefillService) Endpoints() []config.Endpoint {
	return s.endpoints
}

// Run processes all pending tasks
func (s *PrefillService) Run(ctx context.Context) (*batch.Summary, error) {
	mode := "full"
	if s.config.Trial {
		mode = "trial"
	}
	logger.Info("Starting %s prefill: %s -> %s", mode, s.config.InputFile, s.config.OutputFile)

	return s.driver.Run(ctx)
}

// Close releases the checkpoint store
func (s *PrefillService) Close() error {
	return s.store.Close()
}
