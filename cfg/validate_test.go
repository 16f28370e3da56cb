package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultConfig() Config {
	c := Config{}
	c.Logging = GetDefaultLoggingConfig()
	c.FileSystem.CacheCapacity = DefaultCacheCapacity
	return c
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := defaultConfig()
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsZeroCacheCapacity(t *testing.T) {
	c := defaultConfig()
	c.FileSystem.CacheCapacity = 0
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadLogRotate(t *testing.T) {
	c := defaultConfig()
	c.Logging.LogRotate.MaxFileSizeMB = 0
	assert.Error(t, c.Validate())

	c = defaultConfig()
	c.Logging.LogRotate.BackupFileCount = -1
	assert.Error(t, c.Validate())
}
