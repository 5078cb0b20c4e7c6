// Package command wires the CLI surface to the mirror services.
package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cvdmirror/cvdmirror/internal/adapter/s3"
	"github.com/cvdmirror/cvdmirror/internal/config"
	"github.com/cvdmirror/cvdmirror/internal/logger"
	"github.com/cvdmirror/cvdmirror/internal/service"
	"github.com/cvdmirror/cvdmirror/internal/state"
)

var (
	flagVerbose bool
	flagLogJSON bool
	flagLogFile string
)

var rootCmd = &cobra.Command{
	Use:   "cvdmirror",
	Short: "Maintain a private ClamAV database mirror backed by S3",
	Long: `cvdmirror keeps a local ClamAV signature database directory up to date
and replicates it to an S3 bucket, so fleets can fetch signatures from a
private mirror instead of hammering the public CDN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "also write logs to this file (rotated)")
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	err := rootCmd.Execute()
	logger.Shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// initLogging configures the global logger from the persistent flags and
// the engine settings file's log_directory.
func initLogging() error {
	cfg := logger.Config{
		Level:  logger.LevelInfo,
		Format: logger.FormatText,
	}
	if flagVerbose {
		cfg.Level = logger.LevelDebug
	}
	if flagLogJSON {
		cfg.Format = logger.FormatJSON
	}

	logPath := flagLogFile
	if logPath == "" {
		if mc, err := config.LoadMirror(); err == nil && mc.LogDirectory != "" {
			logPath = filepath.Join(config.ExpandPath(mc.LogDirectory), "cvdmirror.log")
		}
	}
	if logPath != "" {
		cfg.File = logger.FileConfig{
			Enabled:    true,
			Path:       logPath,
			MaxSizeMB:  10,
			MaxAgeDays: 30,
			MaxBackups: 5,
			Compress:   true,
		}
	}

	return logger.Init(cfg)
}

// resolveSyncService resolves the replication settings through the source
// chain, validates them, and builds a sync service against the real bucket
func resolveSyncService(ctx context.Context, overrides config.Overrides) (*service.SyncService, *config.S3Config, error) {
	cfg, source, err := config.ResolveS3(overrides)
	if err != nil {
		return nil, nil, err
	}
	logger.Get().Debug("replication settings resolved",
		"source", source,
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"prefix", cfg.Prefix,
	)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	dbDir, err := config.DatabaseDir()
	if err != nil {
		return nil, nil, err
	}

	store, err := s3.New(ctx, cfg.Bucket, cfg.Region)
	if err != nil {
		return nil, nil, err
	}

	svc, err := service.NewSyncService(cfg, dbDir, store)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

// openState opens the run history database under the config directory.
// History is best effort: a failure is logged, not fatal.
func openState() *state.Manager {
	dir, err := config.Dir()
	if err != nil {
		logger.Get().Warn("cannot resolve config directory for run history", "error", err)
		return nil
	}
	mgr, err := state.NewManager(dir)
	if err != nil {
		logger.Get().Warn("cannot open run history", "error", err)
		return nil
	}
	return mgr
}
