package pathing

import (
	"os"
	"path/filepath"
	"runtime"
)

// Overrides every directory below when set. Handy for running from a checkout.
const homeEnv = "SCALE_GATEWAY_HOME"

// Ensure directories exist on startup.
// Must be called manually before anything writes to disk.
func EnsureDirs() error {
	dirs := []string{
		GetDataDir(),
		GetConfigDir(),
		GetLogDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func GetMonitorDbPath() string {
	return filepath.Join(GetDataDir(), "scale-monitor.db")
}

func GetDataDir() string {
	if home := os.Getenv(homeEnv); home != "" {
		return filepath.Join(home, "data")
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(programData(), "ScaleGateway")
	}
	return "/var/lib/scale_gateway"
}

func GetConfigDir() string {
	if home := os.Getenv(homeEnv); home != "" {
		return filepath.Join(home, "config")
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(programData(), "ScaleGateway")
	}
	return "/etc/scale_gateway"
}

// Logs live next to the data on every platform.
func GetLogDir() string {
	return filepath.Join(GetDataDir(), "logs")
}

func programData() string {
	if dir := os.Getenv("ProgramData"); dir != "" {
		return dir
	}
	return `C:\ProgramData`
}
