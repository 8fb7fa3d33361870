package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/devsweep/internal/audit"
	"github.com/zhengda-lu/devsweep/internal/config"
	"github.com/zhengda-lu/devsweep/internal/logging"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

var (
	jsonFlag   bool
	debugFlag  bool
	quietFlag  bool
	configPath string
	appConfig  *config.Config

	logger   = slog.New(slog.DiscardHandler)
	closeLog = func() error { return nil }

	// Set via ldflags at build time.
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "devsweep",
	Short: "Find and safely remove development artifacts",
	Long: "devsweep scans your projects for dependency trees, build outputs and toolchain caches,\n" +
		"and removes them after re-validating every path immediately before deletion.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Flags().Changed("version") {
			appConfig = config.Default()
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg

		for _, w := range appConfig.Validate() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Message)
		}

		now := time.Now()
		logPath := utils.ExpandHome(appConfig.Logging.Path)
		archivedLog, logErr := logging.Rotate(logPath, appConfig.Retention(), now)
		if err := setupLogging(cmd); err != nil {
			return err
		}
		reportRotation("log", logPath, archivedLog, logErr)
		path := auditPath(appConfig)
		archived, err := audit.Rotate(path, appConfig.Retention(), now)
		reportRotation("audit log", path, archived, err)
		return nil
	},
}

// reportRotation logs the outcome of a retention rotation. A failed
// rotation never blocks the command.
func reportRotation(what, path, archived string, err error) {
	switch {
	case err != nil:
		logger.Warn(what+" rotation failed", "path", path, "error", err)
	case archived != "":
		logger.Info("archived "+what, "path", path, "archive", archived)
	}
}

// setupLogging builds the logger from the config. --debug raises the level
// and mirrors records to stderr.
func setupLogging(cmd *cobra.Command) error {
	opts := logging.Options{
		Level:  appConfig.Logging.Level,
		Format: appConfig.Logging.Format,
		Path:   utils.ExpandHome(appConfig.Logging.Path),
	}
	if debugFlag {
		opts.Level = "debug"
		opts.Stderr = cmd.ErrOrStderr()
	}
	l, closer, err := logging.New(opts)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger, closeLog = l, closer
	logger.Debug("starting", "command", cmd.CommandPath(), "version", version)
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; deletion stops between records.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() { closeLog() }()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("devsweep %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log debug records to stderr")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress all output (for scheduled runs)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/devsweep/config.yaml)")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
}

// RootCmd returns the root cobra command for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}
