package config

type SerialConfig struct {
	Port           string `toml:"port" validate:"required"`
	BaudRate       int    `toml:"baud_rate" validate:"gt=0"`
	Driver         string `toml:"driver" validate:"oneof=bugst jacobsa"`
	ReadTimeoutMs  int    `toml:"read_timeout_ms" validate:"gt=0"`
	WriteTimeoutMs int    `toml:"write_timeout_ms" validate:"gt=0"`
	SettleDelayMs  int    `toml:"settle_delay_ms" validate:"gte=0"`
	ReopenDelayMs  int    `toml:"reopen_delay_ms" validate:"gte=0"`
	// Written before every read for scales configured for on-demand output.
	// Empty for scales that push on their own (SET key, continuous mode).
	RequestCommand string `toml:"request_command"`
}

type WorkerConfig struct {
	IntervalMs int `toml:"interval_ms" validate:"gt=0"`
	// 1 keeps a single pending slot: a newer reading replaces an undelivered one.
	// Larger values queue up to that many undelivered readings.
	PendingCapacity int `toml:"pending_capacity" validate:"gte=1"`
}

type ERPConfig struct {
	URL                string   `toml:"url" validate:"required,url"`
	Username           string   `toml:"username" validate:"required"`
	Password           string   `toml:"password" validate:"required"`
	TimeoutS           int      `toml:"timeout_s" validate:"gt=0"`
	ConfirmationTokens []string `toml:"confirmation_tokens" validate:"min=1,dive,required"`
	// Reported as ADDRESS. Detected from the default route when empty.
	Address string `toml:"address" validate:"omitempty,ip"`
}

type WebConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port" validate:"gt=0,lte=65535"`
}

type LogConfig struct {
	Level      string `toml:"level" validate:"oneof=trace debug info warn error"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `toml:"max_age_days" validate:"gte=0"`
	Console    bool   `toml:"console"`
}

type GatewayConfig struct {
	Serial SerialConfig `toml:"serial"`
	Worker WorkerConfig `toml:"worker"`
	ERP    ERPConfig    `toml:"erp"`
	Web    WebConfig    `toml:"web"`
	Log    LogConfig    `toml:"log"`
}

type MonitorConfig struct {
	ListenAddress   string    `toml:"listen_address"`
	ListenPort      int       `toml:"listen_port" validate:"gt=0,lte=65535"`
	DatabasePath    string    `toml:"database_path"`
	PollIntervalS   int       `toml:"poll_interval_s" validate:"gt=0"`
	MaxConcurrency  int       `toml:"max_concurrency" validate:"gt=0"`
	RequestTimeoutS int       `toml:"request_timeout_s" validate:"gt=0"`
	PingFallback    bool      `toml:"ping_fallback"`
	PingPrivileged  bool      `toml:"ping_privileged"`
	ScaleStatusPort int       `toml:"scale_status_port" validate:"gte=0,lte=65535"`
	Log             LogConfig `toml:"log"`
}
