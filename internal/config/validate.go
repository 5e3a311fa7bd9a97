package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validate checks enum fields and structural constraints. Validation failures are
// fatal at startup; the daemon never begins watching with an invalid config.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		return fmt.Errorf("paths.source_dir is required")
	}
	if strings.TrimSpace(c.Paths.DestDir) == "" {
		return fmt.Errorf("paths.dest_dir is required")
	}
	if c.Paths.SourceDir == c.Paths.DestDir {
		return fmt.Errorf("paths.source_dir and paths.dest_dir must differ")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	switch c.Encoding.Engine {
	case "ffmpeg", "drapto":
	default:
		return fmt.Errorf("encoding.engine: unsupported value %q (expected ffmpeg or drapto)", c.Encoding.Engine)
	}
	switch c.Encoding.Hardware {
	case "nvidia", "intel":
	default:
		return fmt.Errorf("encoding.hardware: unsupported value %q (expected nvidia or intel)", c.Encoding.Hardware)
	}
	switch c.Encoding.Quality {
	case "LOW", "MEDIUM", "HIGH":
	default:
		return fmt.Errorf("encoding.quality: unsupported value %q (expected LOW, MEDIUM, or HIGH)", c.Encoding.Quality)
	}
	switch c.Encoding.Codec {
	case "hevc", "av1":
	default:
		return fmt.Errorf("encoding.codec: unsupported value %q (expected hevc or av1)", c.Encoding.Codec)
	}
	return nil
}

func (c *Config) validateScan() error {
	for _, pattern := range c.Scan.IgnorePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("scan.ignore_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}
