package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoding()
	c.normalizeLinks()
	c.normalizeScan()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SOURCE_FOLDER"); ok && strings.TrimSpace(value) != "" {
		c.Paths.SourceDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("DEST_FOLDER"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DestDir = strings.TrimSpace(value)
	}

	var err error
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.DestDir, err = expandPath(c.Paths.DestDir); err != nil {
		return fmt.Errorf("paths.dest_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoding() {
	if value, ok := os.LookupEnv("ENABLE_HW_ACCEL"); ok {
		c.Encoding.HardwareAccel = strings.EqualFold(strings.TrimSpace(value), "true")
	}
	if value, ok := os.LookupEnv("ENCODING_QUALITY"); ok && strings.TrimSpace(value) != "" {
		c.Encoding.Quality = strings.TrimSpace(value)
	}

	c.Encoding.Engine = strings.ToLower(strings.TrimSpace(c.Encoding.Engine))
	if c.Encoding.Engine == "" {
		c.Encoding.Engine = defaultEngine
	}
	c.Encoding.Hardware = strings.ToLower(strings.TrimSpace(c.Encoding.Hardware))
	if c.Encoding.Hardware == "" {
		c.Encoding.Hardware = defaultHardware
	}
	c.Encoding.Quality = strings.ToUpper(strings.TrimSpace(c.Encoding.Quality))
	if c.Encoding.Quality == "" {
		c.Encoding.Quality = defaultQuality
	}
	c.Encoding.Codec = strings.ToLower(strings.TrimSpace(c.Encoding.Codec))
	if c.Encoding.Codec == "" {
		c.Encoding.Codec = defaultCodec
	}
	if c.Encoding.MaxHeight <= 0 {
		c.Encoding.MaxHeight = defaultMaxHeight
	}
	if c.Encoding.Workers <= 0 {
		c.Encoding.Workers = defaultWorkers
	}
	if c.Encoding.RetryAttempts <= 0 {
		c.Encoding.RetryAttempts = defaultRetryAttempts
	}
	if c.Encoding.RetryDelay <= 0 {
		c.Encoding.RetryDelay = defaultRetryDelay
	}
	if c.Encoding.MinEncodedBytes <= 0 {
		c.Encoding.MinEncodedBytes = defaultMinEncodedBytes
	}
}

func (c *Config) normalizeLinks() {
	c.Links.Prefix = strings.TrimRight(c.Links.Prefix, "\t\n")
	c.Links.Suffix = strings.TrimRight(c.Links.Suffix, "\t\n")
}

func (c *Config) normalizeScan() {
	if c.Scan.IntervalHours <= 0 {
		c.Scan.IntervalHours = defaultScanInterval
	}
	if c.Scan.SettleSeconds <= 0 {
		c.Scan.SettleSeconds = defaultSettleSeconds
	}
	if c.Scan.SettleChecks <= 0 {
		c.Scan.SettleChecks = defaultSettleChecks
	}
	if c.Scan.SettleTimeout <= 0 {
		c.Scan.SettleTimeout = defaultSettleTimeout
	}
	if value, ok := os.LookupEnv("IGNORE_PATTERNS"); ok {
		for _, pattern := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(pattern); trimmed != "" {
				c.Scan.IgnorePatterns = append(c.Scan.IgnorePatterns, trimmed)
			}
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
