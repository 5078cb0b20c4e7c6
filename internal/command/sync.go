package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvdmirror/cvdmirror/internal/config"
	"github.com/cvdmirror/cvdmirror/internal/domain"
	"github.com/cvdmirror/cvdmirror/internal/logger"
	"github.com/cvdmirror/cvdmirror/internal/state"
)

var syncFlags struct {
	upload   bool
	download bool
	testConn bool
	force    bool
	dryRun   bool
	bucket   string
	region   string
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local database directory with the bucket",
	Long: `Compares the local database directory against the bucket and copies
whatever is missing or newer on the chosen source side. The default
direction is upload; ties and strictly newer destination copies are
left alone unless --force is given.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFlags.upload, "upload", false, "copy local files to the bucket (default)")
	syncCmd.Flags().BoolVar(&syncFlags.download, "download", false, "copy bucket objects to the local directory")
	syncCmd.Flags().BoolVar(&syncFlags.testConn, "test-connection", false, "verify bucket access and exit")
	syncCmd.Flags().BoolVarP(&syncFlags.force, "force", "f", false, "transfer every file regardless of timestamps")
	syncCmd.Flags().BoolVarP(&syncFlags.dryRun, "dry-run", "n", false, "plan only, transfer nothing")
	syncCmd.Flags().StringVar(&syncFlags.bucket, "bucket", "", "bucket name (overrides environment and settings file)")
	syncCmd.Flags().StringVar(&syncFlags.region, "region", "", "bucket region")
	syncCmd.MarkFlagsMutuallyExclusive("upload", "download", "test-connection")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, _, err := resolveSyncService(ctx, config.Overrides{
		Bucket: syncFlags.bucket,
		Region: syncFlags.region,
	})
	if err != nil {
		return err
	}

	if syncFlags.testConn {
		return svc.TestConnection(ctx)
	}

	direction := domain.DirUpload
	operation := state.OpUpload
	if syncFlags.download {
		direction = domain.DirDownload
		operation = state.OpDownload
	}

	start := time.Now()
	var plan *domain.Plan
	if direction == domain.DirDownload {
		plan, err = svc.PlanDownload(ctx, syncFlags.force)
	} else {
		plan, err = svc.PlanUpload(ctx, syncFlags.force)
	}
	if err != nil {
		return err
	}

	result, execErr := svc.Execute(ctx, plan, syncFlags.dryRun)
	if result != nil && !result.DryRun {
		recordSyncRun(operation, start, result, execErr)
	}
	if execErr != nil {
		return execErr
	}

	printResult(cmd, direction, plan, result)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d transfers failed", result.Failed, result.Planned)
	}
	return nil
}

func printResult(cmd *cobra.Command, direction domain.Direction, plan *domain.Plan, result *domain.Result) {
	verb := "Uploaded"
	if direction == domain.DirDownload {
		verb = "Downloaded"
	}
	if result.DryRun {
		cmd.Printf("Dry run: would transfer %d file(s), %d byte(s); %d up to date\n",
			result.Planned, plan.Stats.BytesToTransfer, plan.Skipped)
		for _, t := range plan.Transfers {
			cmd.Printf("  %-8s %-30s %s (%s)\n", t.Direction.String(), t.Path, t.Key, t.Reason)
		}
		return
	}
	cmd.Printf("%s %d file(s), %d byte(s); %d up to date, %d failed\n",
		verb, result.Succeeded, result.Bytes, plan.Skipped, result.Failed)
}

func recordSyncRun(operation string, start time.Time, result *domain.Result, execErr error) {
	mgr := openState()
	if mgr == nil {
		return
	}
	defer mgr.Close()

	record := state.RunRecord{
		Operation:        operation,
		StartTime:        start,
		EndTime:          time.Now(),
		Status:           state.StatusSuccess,
		FilesTransferred: result.Succeeded,
		BytesTransferred: result.Bytes,
	}
	switch {
	case execErr != nil:
		record.Status = state.StatusFailed
		record.Error = execErr.Error()
	case result.Failed > 0:
		record.Status = state.StatusPartial
		record.Error = fmt.Sprintf("%d of %d transfers failed", result.Failed, result.Planned)
	}
	if err := mgr.SaveRun(record); err != nil {
		logger.Get().Warn("failed to record run history", "operation", record.Operation, "error", err)
	}
}
