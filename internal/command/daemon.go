package command

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvdmirror/cvdmirror/internal/config"
	"github.com/cvdmirror/cvdmirror/internal/cvd"
	"github.com/cvdmirror/cvdmirror/internal/daemon"
	"github.com/cvdmirror/cvdmirror/internal/domain"
	"github.com/cvdmirror/cvdmirror/internal/logger"
	"github.com/cvdmirror/cvdmirror/internal/service"
)

var daemonFlags struct {
	interval time.Duration
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the mirror refresh loop in the foreground",
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Refresh the databases on an interval until interrupted",
	Long: `Updates the signature databases and uploads them on a fixed interval.
The first refresh happens immediately. A PID file under the config
directory guards against a second daemon on the same host.`,
	RunE: runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running",
	RunE:  daemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running daemon to shut down",
	RunE:  daemonStop,
}

func init() {
	daemonRunCmd.Flags().DurationVarP(&daemonFlags.interval, "interval", "i", 4*time.Hour, "time between refreshes")

	daemonCmd.AddCommand(daemonRunCmd, daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pidPath, err := daemon.DefaultPIDPath()
	if err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(pidPath)
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Get().Warn("failed to remove pid file", "path", pidPath, "error", err)
		}
	}()

	mgr := openState()
	if mgr != nil {
		defer mgr.Close()
	}

	updateSvc, err := service.NewUpdateService(cvd.NewRunner(cvd.DefaultBinary, flagVerbose), mgr)
	if err != nil {
		return err
	}

	// Replication is optional for the daemon: without a bucket it still
	// keeps the local databases fresh
	syncSvc, _, err := resolveSyncService(ctx, config.Overrides{})
	if err != nil {
		if !errors.Is(err, domain.ErrConfigMissing) && !errors.Is(err, domain.ErrSyncDisabled) {
			return err
		}
		logger.Get().Info("replication not configured, daemon will only refresh locally", "reason", err)
		syncSvc = nil
	}

	daemonSvc, err := service.NewDaemonService(updateSvc, syncSvc, mgr)
	if err != nil {
		return err
	}

	if err := daemonSvc.Start(ctx, daemonFlags.interval); err != nil {
		return err
	}
	cmd.Printf("Daemon running, refreshing every %s (pid %d)\n", daemonFlags.interval, os.Getpid())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Get().Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	return daemonSvc.Close()
}

func daemonStatus(cmd *cobra.Command, args []string) error {
	pidPath, err := daemon.DefaultPIDPath()
	if err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(pidPath)

	// A missing or unreadable PID file simply means no daemon
	running, err := pidFile.IsRunning()
	if err != nil || !running {
		cmd.Println("Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return err
	}
	cmd.Printf("Daemon is running (pid %d)\n", pid)

	if mgr := openState(); mgr != nil {
		defer mgr.Close()
		history, err := mgr.GetAllHistory(1)
		if err == nil && len(history) > 0 {
			last := history[0]
			cmd.Printf("Last run: %s %s at %s (%d file(s), %d byte(s))\n",
				last.Operation, last.Status,
				last.StartTime.Format(time.RFC3339),
				last.FilesTransferred, last.BytesTransferred,
			)
		}
	}
	return nil
}

func daemonStop(cmd *cobra.Command, args []string) error {
	pidPath, err := daemon.DefaultPIDPath()
	if err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(pidPath)

	running, err := pidFile.IsRunning()
	if err != nil || !running {
		return fmt.Errorf("daemon is not running")
	}

	if err := pidFile.Kill(); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	cmd.Println("Stop signal sent")
	return nil
}
