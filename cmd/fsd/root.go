package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/opsys/blockfs/cfg"
	"github.com/opsys/blockfs/internal/diskcache"
	"github.com/opsys/blockfs/internal/diskclient"
	"github.com/opsys/blockfs/internal/fsengine"
	"github.com/opsys/blockfs/internal/fsservice"
	"github.com/opsys/blockfs/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	bindErr       error
	configFileErr error
	unmarshalErr  error
	config        cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "fsd <disk_host> <disk_port> <fs_port>",
	Short: "Serve the UNIX-style file system over the file-system wire protocol",
	Args:  cobra.ExactArgs(3),
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
	diskHost := args[0]
	diskPort, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("disk_port: %w", err)
	}
	fsPort, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("fs_port: %w", err)
	}

	configureLogging()

	diskAddr := fmt.Sprintf("%s:%d", diskHost, diskPort)
	client, err := diskclient.Dial(context.Background(), diskAddr)
	if err != nil {
		return fmt.Errorf("dial disk service at %s: %w", diskAddr, err)
	}
	defer client.Close()
	ncyl, nsec := client.Geometry()

	cache := diskcache.New(client, config.FileSystem.CacheCapacity)
	engine := fsengine.New(cache)
	engine.Load()

	dispatcher := fsservice.NewDispatcher(engine, ncyl, nsec, cache)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", fsPort))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", fsPort, err)
	}
	defer ln.Close()

	var g errgroup.Group
	if addr := config.FileSystem.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		g.Go(func() error {
			logger.Infof("fsd: serving metrics on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Infof("fsd: serving disk at %s (%d cyl x %d sec), cache capacity %d, on %s",
			diskAddr, ncyl, nsec, config.FileSystem.CacheCapacity, ln.Addr())
		return fsservice.NewServer(dispatcher).Serve(ln)
	})

	return g.Wait()
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
		logger.Warnf("fsd: could not open log file %s: %v", config.Logging.FilePath, err)
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
