package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cvdmirror/cvdmirror/internal/domain"
)

const (
	// DefaultRegion is used when no region is configured anywhere
	DefaultRegion = "us-east-1"

	// DefaultPrefix is the key prefix databases are mirrored under
	DefaultPrefix = "clamav/databases"

	// S3ConfigFileName is the replication settings file under the config dir
	S3ConfigFileName = "s3_config.json"

	// MirrorConfigFileName is the engine settings file under the config dir
	MirrorConfigFileName = "config.json"
)

// S3Config holds the replication settings stored in s3_config.json
type S3Config struct {
	Bucket      string `json:"bucket" mapstructure:"bucket"`
	Region      string `json:"region" mapstructure:"region"`
	Prefix      string `json:"prefix" mapstructure:"prefix"`
	SyncEnabled bool   `json:"sync_enabled" mapstructure:"sync_enabled"`
}

// Validate checks that the configuration permits a sync run
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: set-s3-bucket has not been run and no override given", domain.ErrConfigMissing)
	}
	if !c.SyncEnabled {
		return fmt.Errorf("%w: enable with set-s3-sync enabled", domain.ErrSyncDisabled)
	}
	return nil
}

// MirrorConfig holds the engine settings stored in config.json
type MirrorConfig struct {
	DatabaseDirectory string `json:"database_directory,omitempty" mapstructure:"database_directory"`
	LogDirectory      string `json:"log_directory,omitempty" mapstructure:"log_directory"`
	Nameserver        string `json:"nameserver,omitempty" mapstructure:"nameserver"`
}

// EnvHome relocates the configuration directory, matching the variable the
// update engine honours
const EnvHome = "CVD_HOME"

// Dir returns the mirror configuration directory (~/.cvdupdate), shared
// with the external update engine
func Dir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cvdupdate"), nil
}

// S3ConfigPath returns the path of the replication settings file
func S3ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, S3ConfigFileName), nil
}

// MirrorConfigPath returns the path of the engine settings file
func MirrorConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, MirrorConfigFileName), nil
}

// DatabaseDir resolves the database directory: the configured
// database_directory if set, otherwise <configdir>/database
func DatabaseDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	path, err := MirrorConfigPath()
	if err != nil {
		return "", err
	}

	cfg, err := loadMirrorFile(path)
	if err == nil && cfg.DatabaseDirectory != "" {
		return ExpandPath(cfg.DatabaseDirectory), nil
	}

	return filepath.Join(dir, "database"), nil
}

// SaveS3 writes the replication settings file, creating the config
// directory when needed
func SaveS3(cfg *S3Config) error {
	path, err := S3ConfigPath()
	if err != nil {
		return err
	}
	return writeJSON(path, cfg)
}

// SaveMirror writes the engine settings file
func SaveMirror(cfg *MirrorConfig) error {
	path, err := MirrorConfigPath()
	if err != nil {
		return err
	}
	return writeJSON(path, cfg)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// BackupMirror copies config.json to config.json.backup
func BackupMirror() (string, error) {
	path, err := MirrorConfigPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("no configuration file to back up: %w", err)
	}
	backup := path + ".backup"
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return backup, nil
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
