package cfg

import "fmt"

// Validate rejects configuration combinations the binaries cannot run with.
func (c *Config) Validate() error {
	if err := isValidLogRotateConfig(&c.Logging.LogRotate); err != nil {
		return err
	}
	if c.FileSystem.CacheCapacity < 1 {
		return fmt.Errorf("file-system.cache-capacity must be at least 1, got %d", c.FileSystem.CacheCapacity)
	}
	return nil
}

func isValidLogRotateConfig(c *LogRotateConfig) error {
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("logging.log-rotate.max-file-size-mb should be at least 1")
	}
	if c.BackupFileCount < 0 {
		return fmt.Errorf("logging.log-rotate.backup-file-count should be 0 (retain all) or positive")
	}
	return nil
}
