package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cvdmirror/cvdmirror/internal/config"
	"github.com/cvdmirror/cvdmirror/internal/cvd"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change mirror settings",
}

func init() {
	configCmd.AddCommand(
		configShowCmd,
		configShowS3Cmd,
		configListCmd,
		configBackupCmd,
		engineSetCmd("set-dbdir", "dbdir", "Set the database directory"),
		engineSetCmd("set-logdir", "logdir", "Set the engine log directory"),
		engineSetCmd("set-nameserver", "nameserver", "Set the DNS nameserver used for version checks"),
		configAddDatabaseCmd,
		configSetS3BucketCmd,
		configSetS3RegionCmd,
		configSetS3PrefixCmd,
		configSetS3SyncCmd,
	)
	rootCmd.AddCommand(configCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the update engine's configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := cvd.NewRunner(cvd.DefaultBinary, flagVerbose)
		out, err := runner.ConfigShow(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println(strings.TrimRight(out, "\n"))
		return nil
	},
}

var configShowS3Cmd = &cobra.Command{
	Use:   "show-s3",
	Short: "Print the replication settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, source, err := config.ResolveS3(config.Overrides{})
		if err != nil {
			return err
		}
		cmd.Printf("Source:       %s\n", source)
		cmd.Printf("Bucket:       %s\n", orUnset(cfg.Bucket))
		cmd.Printf("Region:       %s\n", cfg.Region)
		cmd.Printf("Prefix:       %s\n", cfg.Prefix)
		cmd.Printf("Sync enabled: %t\n", cfg.SyncEnabled)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the databases the engine tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := cvd.NewRunner(cvd.DefaultBinary, flagVerbose)
		out, err := runner.ListDatabases(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println(strings.TrimRight(out, "\n"))
		return nil
	},
}

var configBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the engine configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		backup, err := config.BackupMirror()
		if err != nil {
			return err
		}
		cmd.Printf("Configuration backed up to %s\n", backup)
		return nil
	},
}

// engineSetCmd builds a subcommand that forwards one setting to the
// update engine, which owns the engine configuration file
func engineSetCmd(use, flag, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <value>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := cvd.NewRunner(cvd.DefaultBinary, flagVerbose)
			if err := runner.ConfigSet(cmd.Context(), flag, args[0]); err != nil {
				return err
			}
			cmd.Printf("Set %s to %s\n", flag, args[0])
			return nil
		},
	}
}

var configAddDatabaseCmd = &cobra.Command{
	Use:   "add-database <name> <url>",
	Short: "Register an additional database with the engine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := cvd.NewRunner(cvd.DefaultBinary, flagVerbose)
		if err := runner.AddDatabase(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("Added database %s\n", args[0])
		return nil
	},
}

var configSetS3BucketCmd = &cobra.Command{
	Use:   "set-s3-bucket <name>",
	Short: "Set the replication bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateS3(cmd, func(cfg *config.S3Config) {
			cfg.Bucket = args[0]
		})
	},
}

var configSetS3RegionCmd = &cobra.Command{
	Use:   "set-s3-region <region>",
	Short: "Set the replication bucket region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateS3(cmd, func(cfg *config.S3Config) {
			cfg.Region = args[0]
		})
	},
}

var configSetS3PrefixCmd = &cobra.Command{
	Use:   "set-s3-prefix <prefix>",
	Short: "Set the key prefix databases are mirrored under",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateS3(cmd, func(cfg *config.S3Config) {
			cfg.Prefix = strings.Trim(args[0], "/")
		})
	},
}

var configSetS3SyncCmd = &cobra.Command{
	Use:   "set-s3-sync <enabled|disabled>",
	Short: "Enable or disable replication",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch strings.ToLower(args[0]) {
		case "enabled", "on", "true":
			enabled = true
		case "disabled", "off", "false":
			enabled = false
		default:
			return fmt.Errorf("invalid value %q: use 'enabled' or 'disabled'", args[0])
		}
		return updateS3(cmd, func(cfg *config.S3Config) {
			cfg.SyncEnabled = enabled
		})
	},
}

// updateS3 applies one mutation to the stored replication settings file,
// preserving everything else already in it
func updateS3(cmd *cobra.Command, mutate func(*config.S3Config)) error {
	path, err := config.S3ConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.LoadS3File(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		cfg = &config.S3Config{}
	}

	mutate(cfg)
	if err := config.SaveS3(cfg); err != nil {
		return err
	}
	cmd.Printf("Replication settings saved to %s\n", path)
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
