package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/scale_gateway/pkg/pathing"
	"github.com/go-playground/validator/v10"
)

const (
	GatewayConfigFile = "scale_gateway.toml"
	MonitorConfigFile = "scale_monitor.toml"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables that win over the file.
const (
	EnvSerialPort       = "SCALE_SERIAL_PORT"
	EnvBaudRate         = "SCALE_BAUD_RATE"
	EnvWorkerIntervalMs = "SCALE_WORKER_INTERVAL_MS"
	EnvERPURL           = "SCALE_ERP_URL"
	EnvERPUsername      = "SCALE_ERP_USERNAME"
	EnvERPPassword      = "SCALE_ERP_PASSWORD"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func DefaultGatewayConfig() *GatewayConfig {
	port := "/dev/ttyUSB0"
	if runtime.GOOS == "windows" {
		port = "COM2"
	}

	return &GatewayConfig{
		Serial: SerialConfig{
			Port:           port,
			BaudRate:       9600,
			Driver:         "bugst",
			ReadTimeoutMs:  2000,
			WriteTimeoutMs: 1000,
			SettleDelayMs:  500,
			ReopenDelayMs:  1000,
		},
		Worker: WorkerConfig{
			IntervalMs:      3000,
			PendingCapacity: 1,
		},
		ERP: ERPConfig{
			TimeoutS:           30,
			ConfirmationTokens: []string{"RECEIVED", "RECIBIDO"},
		},
		Web: WebConfig{
			ListenAddress: "0.0.0.0",
			ListenPort:    80,
		},
		Log: defaultLogConfig("scale_gateway.log"),
	}
}

func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		ListenAddress:   "0.0.0.0",
		ListenPort:      5000,
		DatabasePath:    pathing.GetMonitorDbPath(),
		PollIntervalS:   5,
		MaxConcurrency:  50,
		RequestTimeoutS: 3,
		PingFallback:    true,
		Log:             defaultLogConfig("scale_monitor.log"),
	}
}

func defaultLogConfig(file string) LogConfig {
	return LogConfig{
		Level:      "debug",
		File:       filepath.Join(pathing.GetLogDir(), file),
		MaxSizeMB:  10,
		MaxBackups: 7,
		MaxAgeDays: 7,
		Console:    true,
	}
}

// Default location of a config file.
func DefaultPath(name string) string {
	return filepath.Join(pathing.GetConfigDir(), name)
}

// LoadGatewayConfig reads path, creating it with defaults when missing.
// Environment overrides are applied before validation, so a file without ERP
// credentials is fine as long as the environment provides them.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	cfg := DefaultGatewayConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}

	if err := applyGatewayEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadMonitorConfig(path string) (*MonitorConfig, error) {
	cfg := DefaultMonitorConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and wraps failures in ErrInvalidConfig.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func loadOrCreate(path string, cfg any) error {
	// Create default if not exists
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		cfgFile, err := os.Create(path)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return fmt.Errorf("failed to write default config %s: %w", path, err)
		}
		return nil
	}

	// Load existing config on top of the defaults
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyGatewayEnv(cfg *GatewayConfig) error {
	if v := os.Getenv(EnvSerialPort); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv(EnvBaudRate); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvBaudRate, err)
		}
		cfg.Serial.BaudRate = baud
	}
	if v := os.Getenv(EnvWorkerIntervalMs); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvWorkerIntervalMs, err)
		}
		cfg.Worker.IntervalMs = ms
	}
	if v := os.Getenv(EnvERPURL); v != "" {
		cfg.ERP.URL = v
	}
	if v := os.Getenv(EnvERPUsername); v != "" {
		cfg.ERP.Username = v
	}
	if v := os.Getenv(EnvERPPassword); v != "" {
		cfg.ERP.Password = v
	}
	return nil
}
