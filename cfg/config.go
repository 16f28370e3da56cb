// Package cfg is the typed configuration shared by the diskd and fsd
// binaries: a Config struct with yaml tags for the optional config file,
// and flag bindings that let spf13/pflag values flow into spf13/viper under
// the same keys.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration object, unmarshalled from a YAML file
// (when --config is given) and overlaid with command-line flags.
type Config struct {
	Disk DiskConfig `yaml:"disk"`

	FileSystem FileSystemConfig `yaml:"file-system" mapstructure:"file-system"`

	Logging LoggingConfig `yaml:"logging"`
}

// DiskConfig configures diskd's simulated block device.
type DiskConfig struct {
	SeekMS int `yaml:"seek-ms" mapstructure:"seek-ms"`
}

// FileSystemConfig configures fsd's engine-facing knobs.
type FileSystemConfig struct {
	CacheCapacity int `yaml:"cache-capacity" mapstructure:"cache-capacity"`

	MetricsAddr string `yaml:"metrics-addr" mapstructure:"metrics-addr"`
}

// LoggingConfig controls internal/logger's output.
type LoggingConfig struct {
	Severity string `yaml:"severity"`

	Format string `yaml:"format"`

	FilePath string `yaml:"file" mapstructure:"file"`

	LogRotate LogRotateConfig `yaml:"log-rotate" mapstructure:"log-rotate"`
}

// LogRotateConfig mirrors lumberjack's rotation knobs.
type LogRotateConfig struct {
	MaxFileSizeMB int `yaml:"max-file-size-mb" mapstructure:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count" mapstructure:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

// BindFlags declares the logging flags shared by both binaries
// and binds each to the matching viper key, the way the teacher's
// cfg.BindFlags wires gcsfuse's mount flags.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("log-severity", "INFO", "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err := viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.String("log-format", "text", "Logging output format: text or json.")
	if err := viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.String("log-file", "", "Path to a log file. Logs go to stderr when unset.")
	if err := viper.BindPFlag("logging.file", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	return nil
}

// BindFsFlags declares fsd's additional knobs beyond the shared logging
// flags.
func BindFsFlags(flagSet *pflag.FlagSet) error {
	flagSet.Int("cache-capacity", DefaultCacheCapacity, "Number of 512-byte blocks the fs service keeps warm in its LRU cache.")
	if err := viper.BindPFlag("file-system.cache-capacity", flagSet.Lookup("cache-capacity")); err != nil {
		return err
	}

	flagSet.String("metrics-addr", "", "Address to serve Prometheus /metrics on. Disabled when empty.")
	return viper.BindPFlag("file-system.metrics-addr", flagSet.Lookup("metrics-addr"))
}

// DefaultCacheCapacity matches internal/diskcache.DefaultCapacity.
const DefaultCacheCapacity = 2

// GetDefaultLoggingConfig returns the configuration used before any config
// file or flags are parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: "INFO",
		Format:   "text",
		LogRotate: LogRotateConfig{
			MaxFileSizeMB:   512,
			BackupFileCount: 10,
			Compress:        false,
		},
	}
}
