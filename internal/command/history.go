package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvdmirror/cvdmirror/internal/state"
)

var historyFlags struct {
	limit     int
	operation string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent mirror runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "l", 20, "maximum number of runs to show")
	historyCmd.Flags().StringVarP(&historyFlags.operation, "operation", "o", "", "filter by operation (update, upload, download)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	mgr := openState()
	if mgr == nil {
		return fmt.Errorf("run history is not available")
	}
	defer mgr.Close()

	var records []state.RunRecord
	var err error
	if historyFlags.operation != "" {
		records, err = mgr.GetHistory(historyFlags.operation, historyFlags.limit)
	} else {
		records, err = mgr.GetAllHistory(historyFlags.limit)
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		cmd.Println("No runs recorded yet")
		return nil
	}

	cmd.Printf("%-20s %-10s %-8s %8s %12s  %s\n", "START", "OPERATION", "STATUS", "FILES", "BYTES", "ERROR")
	for _, r := range records {
		cmd.Printf("%-20s %-10s %-8s %8d %12d  %s\n",
			r.StartTime.Format(time.RFC3339),
			r.Operation,
			r.Status,
			r.FilesTransferred,
			r.BytesTransferred,
			r.Error,
		)
	}
	return nil
}
