package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvdmirror/cvdmirror/internal/config"
	"github.com/cvdmirror/cvdmirror/internal/cvd"
	"github.com/cvdmirror/cvdmirror/internal/domain"
	"github.com/cvdmirror/cvdmirror/internal/logger"
	"github.com/cvdmirror/cvdmirror/internal/service"
	"github.com/cvdmirror/cvdmirror/internal/state"
)

var updateFlags struct {
	noSync bool
	dryRun bool
	bucket string
	region string
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the signature databases and upload them",
	Long: `Runs the signature update engine to refresh the local databases, then
uploads any changed files to the bucket. The upload leg is skipped when
replication is not configured or --no-sync is given.`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateFlags.noSync, "no-sync", false, "update locally, skip the upload")
	updateCmd.Flags().BoolVarP(&updateFlags.dryRun, "dry-run", "n", false, "plan the upload only, transfer nothing")
	updateCmd.Flags().StringVar(&updateFlags.bucket, "s3-bucket", "", "bucket name (overrides environment and settings file)")
	updateCmd.Flags().StringVar(&updateFlags.region, "s3-region", "", "bucket region")

	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mgr := openState()
	if mgr != nil {
		defer mgr.Close()
	}

	updateSvc, err := service.NewUpdateService(cvd.NewRunner(cvd.DefaultBinary, flagVerbose), mgr)
	if err != nil {
		return err
	}
	if err := updateSvc.Run(ctx); err != nil {
		return err
	}
	cmd.Println("Signature databases updated")

	if updateFlags.noSync {
		return nil
	}

	svc, _, err := resolveSyncService(ctx, config.Overrides{
		Bucket: updateFlags.bucket,
		Region: updateFlags.region,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConfigMissing) || errors.Is(err, domain.ErrSyncDisabled) {
			logger.Get().Info("replication not configured, skipping upload", "reason", err)
			return nil
		}
		return err
	}

	start := time.Now()
	plan, err := svc.PlanUpload(ctx, false)
	if err != nil {
		return err
	}

	result, execErr := svc.Execute(ctx, plan, updateFlags.dryRun)
	if result != nil && !result.DryRun && mgr != nil {
		record := state.RunRecord{
			Operation:        state.OpUpload,
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
	if execErr != nil {
		return execErr
	}

	printResult(cmd, domain.DirUpload, plan, result)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d transfers failed", result.Failed, result.Planned)
	}
	return nil
}
