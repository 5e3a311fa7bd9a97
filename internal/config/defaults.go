package config

const (
	defaultSourceDir       = "/media/source"
	defaultDestDir         = "/media/destination"
	defaultStagingDir      = "~/.local/share/transmirror/staging"
	defaultLogDir          = "~/.local/share/transmirror/logs"
	defaultStateDir        = "~/.local/share/transmirror/state"
	defaultEngine          = "ffmpeg"
	defaultHardware        = "intel"
	defaultQuality         = "MEDIUM"
	defaultCodec           = "hevc"
	defaultMaxHeight       = 720
	defaultWorkers         = 1
	defaultRetryAttempts   = 3
	defaultRetryDelay      = 30
	defaultMinEncodedBytes = 1 << 20
	defaultLinkSuffix      = " - 720p"
	defaultScanInterval    = 6
	defaultSettleSeconds   = 1
	defaultSettleChecks    = 60
	defaultSettleTimeout   = 86400
	defaultNotifyTimeout   = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceDir:  defaultSourceDir,
			DestDir:    defaultDestDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Encoding: Encoding{
			Engine:          defaultEngine,
			HardwareAccel:   true,
			Hardware:        defaultHardware,
			Quality:         defaultQuality,
			Codec:           defaultCodec,
			MaxHeight:       defaultMaxHeight,
			Workers:         defaultWorkers,
			RetryAttempts:   defaultRetryAttempts,
			RetryDelay:      defaultRetryDelay,
			MinEncodedBytes: defaultMinEncodedBytes,
		},
		Links: Links{
			Enabled: true,
			Suffix:  defaultLinkSuffix,
		},
		Scan: Scan{
			IntervalHours: defaultScanInterval,
			SettleSeconds: defaultSettleSeconds,
			SettleChecks:  defaultSettleChecks,
			SettleTimeout: defaultSettleTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Encoding:       true,
			Scan:           true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
