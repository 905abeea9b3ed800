package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/kelsos/design-survey/internal/backup"
	"github.com/kelsos/design-survey/internal/config"
	"github.com/kelsos/design-survey/internal/logger"
	"github.com/kelsos/design-survey/internal/services"
	"github.com/kelsos/design-survey/internal/tui"
	"github.com/kelsos/design-survey/internal/utils"
)

func runPrefill(cfg *config.Config, useTUI bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		monitor *tui.Monitor
		opts    services.PrefillOptions
	)
	if useTUI {
		logPath, err := logger.InitFileOnly(cfg.LogDir)
		if err != nil {
			return err
		}
		defer logger.Close()

		monitor = tui.NewMonitor(cancel, logPath)
		opts.Observer = monitor
	}

	svc, err := services.NewPrefillService(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close checkpoint store: %v", err)
		}
	}()

	prefill := func() error {
		_, err := svc.Run(ctx)
		return err
	}

	var g run.Group
	g.Add(func() error {
		if monitor != nil {
			return monitor.Run(prefill)
		}
		return prefill()
	}, func(error) {
		cancel()
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		logger.Warn("Received %s, stopped after the current task", sigErr.Signal)
		return nil
	}
	return err
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	utils.LoadEnvironment()
	logger.Init()

	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	var useTUI bool

	rootCmd := &cobra.Command{
		Use:   "design-survey",
		Short: "Prefill design survey tasks with model suggestions",
		Long: `design-survey augments design tasks with a multimodal model's suggestions and
prepares the augmented tasks for the participant survey.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.ApplyMode()
			if err := cfg.Validate(); err != nil {
				logger.Fatal("Invalid configuration: %v", err)
			}
		},
	}

	prefillCmd := &cobra.Command{
		Use:   "prefill",
		Short: "Ask the model for suggestions on every pending task",
		Long: `Process the input tasks one at a time, appending each answered task to the output
file and checkpointing it so an interrupted run resumes where it stopped.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runPrefill(cfg, useTUI); err != nil {
				if useTUI {
					logger.Init()
				}
				logger.Fatal("Prefill failed: %v", err)
			}
		},
	}

	batchesCmd := &cobra.Command{
		Use:   "batches",
		Short: "Show how the augmented tasks split into survey batches",
		Run: func(cmd *cobra.Command, args []string) {
			batches, err := services.NewSurveyService(cfg).Batches()
			if err != nil {
				logger.Fatal("Failed to build batches: %v", err)
			}
			for _, b := range batches {
				logger.Info("Batch %d: %d tasks %v", b.ID, len(b.Tasks), b.TaskIDs())
			}
			logger.Info("%d batches of up to %d tasks", len(batches), cfg.SurveyBatchSize())
		},
	}

	var participantID string
	assignCmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a participant to the least-assigned survey batch",
		Run: func(cmd *cobra.Command, args []string) {
			assignment, err := services.NewSurveyService(cfg).Assign(participantID)
			if err != nil {
				logger.Fatal("Failed to assign participant: %v", err)
			}
			if err := printJSON(assignment); err != nil {
				logger.Fatal("Failed to print assignment: %v", err)
			}
		},
	}
	assignCmd.Flags().StringVarP(&participantID, "participant", "p", "", "Participant ID to assign")
	_ = assignCmd.MarkFlagRequired("participant")

	var backupDir string
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the output, checkpoint and batch count files",
		Run: func(cmd *cobra.Command, args []string) {
			backupFile, err := backup.CreateBackup(backupDir, cfg.OutputFile, cfg.CheckpointFile, cfg.CountsFile)
			if err != nil {
				logger.Fatal("Failed to create backup: %v", err)
			}
			logger.Info("Backup created successfully: %s", backupFile)
		},
	}
	backupCmd.Flags().StringVarP(&backupDir, "backup-dir", "", "", "Directory where the backup will be stored (default: ~/.design-survey/backups)")
	backupCmd.Flags().StringVarP(&cfg.CheckpointFile, "checkpoint", "", cfg.CheckpointFile, "Checkpoint file")

	// Shared flags
	rootCmd.PersistentFlags().BoolVarP(&cfg.Trial, "trial", "", cfg.Trial, "Trial mode: only the first two survey batches worth of tasks")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputFile, "output", "o", cfg.OutputFile, "Augmented output file (default depends on --trial)")
	rootCmd.PersistentFlags().StringVarP(&cfg.CountsFile, "counts", "", cfg.CountsFile, "Batch assignment counts file (default depends on --trial)")
	rootCmd.PersistentFlags().Int64VarP(&cfg.ShuffleSeed, "shuffle-seed", "", cfg.ShuffleSeed, "Seed used to shuffle tasks into survey batches")

	// Prefill flags
	flags := prefillCmd.Flags()
	flags.StringVarP(&cfg.InputFile, "input", "i", cfg.InputFile, "Input tasks file (JSON Lines)")
	flags.StringVarP(&cfg.CheckpointFile, "checkpoint", "", cfg.CheckpointFile, "Checkpoint file")
	flags.StringVarP(&cfg.CheckpointBackend, "checkpoint-backend", "", cfg.CheckpointBackend, "Checkpoint backend: file or sqlite")
	flags.StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "Endpoint configuration file")
	flags.StringSliceVarP(&cfg.EndpointLabels, "endpoint", "e", cfg.EndpointLabels, "Endpoint label to use, repeatable (default: default_endpoints)")
	flags.StringVarP(&cfg.SelectionPolicy, "selection", "", cfg.SelectionPolicy, "Endpoint selection policy: random or round-robin")
	flags.IntVarP(&cfg.MaxRetries, "max-retries", "r", cfg.MaxRetries, "Maximum attempts per task")
	flags.DurationVarP(&cfg.RetryDelay, "retry-delay", "d", cfg.RetryDelay, "Delay between attempts")
	flags.DurationVarP(&cfg.TaskDelay, "task-delay", "", cfg.TaskDelay, "Delay after each processed task")
	flags.IntVarP(&cfg.MaxImages, "max-images", "", cfg.MaxImages, "Maximum reference images sent per task (0 sends all)")
	flags.StringVarP(&cfg.LogDir, "log-dir", "", cfg.LogDir, "Directory for log files in --tui mode")
	flags.BoolVarP(&useTUI, "tui", "", false, "Show a live progress monitor")

	rootCmd.AddCommand(prefillCmd)
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(backupCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
