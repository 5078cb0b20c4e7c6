package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/cvdmirror/cvdmirror/internal/domain"
)

// Environment variables overriding the settings file
const (
	EnvBucket = "S3_BUCKET_NAME"
	EnvRegion = "S3_REGION"
)

// Overrides carries command-line values that outrank every other source
type Overrides struct {
	Bucket string
	Region string
}

// Source supplies a candidate S3 configuration. A source that cannot name a
// bucket reports ok=false and resolution falls through to the next one.
type Source interface {
	Name() string
	Load() (cfg *S3Config, ok bool, err error)
}

// ResolveS3 consults the ordered source list and returns the first complete
// configuration: flags, then environment, then the settings file. A bucket
// supplied by flag or environment implies sync is enabled. When no source
// provides a bucket the file's (possibly empty) configuration is returned
// so Validate can report the precise condition.
func ResolveS3(overrides Overrides) (*S3Config, string, error) {
	sources := []Source{
		flagSource{overrides},
		envSource{},
		fileSource{},
	}

	for _, src := range sources {
		cfg, ok, err := src.Load()
		if err != nil {
			return nil, src.Name(), err
		}
		if !ok {
			continue
		}
		applyDefaults(cfg)
		return cfg, src.Name(), nil
	}

	// Nothing configured anywhere: sync disabled, no bucket
	cfg := &S3Config{}
	applyDefaults(cfg)
	return cfg, "defaults", nil
}

func applyDefaults(cfg *S3Config) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
}

// flagSource wins when the command line names a bucket
type flagSource struct {
	overrides Overrides
}

func (s flagSource) Name() string { return "flags" }

func (s flagSource) Load() (*S3Config, bool, error) {
	if s.overrides.Bucket == "" {
		return nil, false, nil
	}
	return &S3Config{
		Bucket:      s.overrides.Bucket,
		Region:      s.overrides.Region,
		SyncEnabled: true,
	}, true, nil
}

// envSource wins when S3_BUCKET_NAME is set
type envSource struct{}

func (s envSource) Name() string { return "environment" }

func (s envSource) Load() (*S3Config, bool, error) {
	bucket := os.Getenv(EnvBucket)
	if bucket == "" {
		return nil, false, nil
	}
	return &S3Config{
		Bucket:      bucket,
		Region:      os.Getenv(EnvRegion),
		SyncEnabled: true,
	}, true, nil
}

// fileSource reads s3_config.json; a missing file is not an error, it just
// yields no configuration
type fileSource struct{}

func (s fileSource) Name() string { return "file" }

func (s fileSource) Load() (*S3Config, bool, error) {
	path, err := S3ConfigPath()
	if err != nil {
		return nil, false, err
	}

	cfg, err := LoadS3File(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if cfg.Bucket == "" {
		return nil, false, nil
	}
	return cfg, true, nil
}

// LoadS3File reads and parses a replication settings file
func LoadS3File(path string) (*S3Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	var cfg S3Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// loadMirrorFile reads and parses an engine settings file
func loadMirrorFile(path string) (*MirrorConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	var cfg MirrorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// LoadMirror reads the engine settings file from the default location.
// A missing file yields an empty config.
func LoadMirror() (*MirrorConfig, error) {
	path, err := MirrorConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := loadMirrorFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MirrorConfig{}, nil
		}
		return nil, err
	}
	return cfg, nil
}
