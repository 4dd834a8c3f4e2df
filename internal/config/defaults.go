package config

const (
	defaultDataDir                  = "~/.local/share/rtsync"
	defaultLogDir                   = "~/.local/share/rtsync/logs"
	defaultLogRetentionDays         = 30
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultAPIBind                  = "127.0.0.1:7492"
	defaultUploadPath               = "/api/records/{record_id}/upload"
	defaultRequestTimeoutSeconds    = 300
	defaultUserAgent                = "rtsync/dev"
	defaultDebounceMS               = 2000
	defaultConnectivityMode         = "auto"
	defaultPollIntervalSeconds      = 5
	defaultSysfsRoot                = "/sys/class/net"
	defaultProbeTimeoutSeconds      = 5
	defaultPhotoMaxMB               = 10
	defaultVideoMaxMB               = 120
	defaultPDFMaxMB                 = 30
	defaultNotifyRequestTimeoutSecs = 10
)

// Connectivity modes.
const (
	ConnectivityAuto   = "auto"
	ConnectivityPoll   = "poll"
	ConnectivityManual = "manual"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Server: Server{
			UploadPath:            defaultUploadPath,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			UserAgent:             defaultUserAgent,
		},
		Sync: Sync{
			DebounceMS: defaultDebounceMS,
		},
		Connectivity: Connectivity{
			Mode:                defaultConnectivityMode,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			SysfsRoot:           defaultSysfsRoot,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
		},
		Media: Media{
			PhotoMaxMB: defaultPhotoMaxMB,
			VideoMaxMB: defaultVideoMaxMB,
			PDFMaxMB:   defaultPDFMaxMB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeoutSecs,
			QueueDrained:   true,
			SyncFailures:   true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
