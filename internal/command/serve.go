package command

import (
	"github.com/spf13/cobra"

	"github.com/cvdmirror/cvdmirror/internal/cvd"
)

var serveFlags struct {
	port int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local database directory over HTTP",
	Long: `Starts the update engine's built-in HTTP server over the local database
directory, useful for pointing a test freshclam at the mirror. Runs in
the foreground until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := cvd.NewRunner(cvd.DefaultBinary, flagVerbose)
		return runner.Serve(cmd.Context(), serveFlags.port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 8000, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}
