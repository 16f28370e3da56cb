package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/opsys/blockfs/cfg"
	"github.com/opsys/blockfs/internal/disksim"
	"github.com/opsys/blockfs/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	bindErr       error
	configFileErr error
	unmarshalErr  error
	config        cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "diskd <file> <ncyl> <nsec> <ttd> <port>",
	Short: "Serve a simulated cylinder/sector block device over the disk wire protocol",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := config.Validate(); err != nil {
			return err
		}
		return run(args)
	},
}

func run(args []string) error {
	path := args[0]
	ncyl, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("ncyl: %w", err)
	}
	nsec, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("nsec: %w", err)
	}
	ttd, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("ttd: %w", err)
	}
	port, err := strconv.Atoi(args[4])
	if err != nil {
		return fmt.Errorf("port: %w", err)
	}

	configureLogging()

	disk, err := disksim.Open(path, ncyl, nsec, ttd)
	if err != nil {
		return fmt.Errorf("open disk: %w", err)
	}
	defer disk.Close()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	defer ln.Close()

	logger.Infof("diskd: serving %s (%d cyl x %d sec, ttd=%dms) on %s", path, ncyl, nsec, ttd, ln.Addr())
	return disksim.NewServer(disk).Serve(ln)
}

func configureLogging() {
	logger.SetLogFormat(config.Logging.Format)
	logger.SetLoggingLevel(config.Logging.Severity)
	if config.Logging.FilePath == "" {
		return
	}
	rotate := logger.RotateConfig{
		MaxFileSizeMB:   config.Logging.LogRotate.MaxFileSizeMB,
		BackupFileCount: config.Logging.LogRotate.BackupFileCount,
		Compress:        config.Logging.LogRotate.Compress,
	}
	if err := logger.InitLogFile(config.Logging.FilePath, config.Logging.Severity, config.Logging.Format, rotate); err != nil {
		logger.Warnf("diskd: could not open log file %s: %v", config.Logging.FilePath, err)
	}
}

// Execute runs the root command, exiting the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	config.Logging = cfg.GetDefaultLoggingConfig()
	config.FileSystem.CacheCapacity = cfg.DefaultCacheCapacity
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&config)
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&config)
}
