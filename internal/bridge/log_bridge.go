package bridge

import (
	"os"
	goruntime "runtime"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/logging"
)

// LogBridge exposes log history to operators
type LogBridge struct {
	logger *logging.Logger
}

// NewLogBridge creates a new log bridge
func NewLogBridge(logger *logging.Logger) *LogBridge {
	return &LogBridge{logger: logger}
}

// GetLogHistory returns recent log entries
func (b *LogBridge) GetLogHistory(limit int) []logging.LogEntry {
	return b.logger.GetHistory(limit)
}

// GetLogPath returns the current log file path
func (b *LogBridge) GetLogPath() string {
	return b.logger.GetLogPath()
}

// GetSystemInfo returns system information for troubleshooting
func (b *LogBridge) GetSystemInfo() map[string]interface{} {
	info := make(map[string]interface{})

	info["os"] = goruntime.GOOS
	info["arch"] = goruntime.GOARCH
	info["goVersion"] = goruntime.Version()
	info["numCPU"] = goruntime.NumCPU()
	info["numGoroutine"] = goruntime.NumGoroutine()

	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	info["memAlloc"] = m.Alloc / 1024 / 1024 // MB
	info["memSys"] = m.Sys / 1024 / 1024
	info["numGC"] = m.NumGC

	host, _ := os.Hostname()
	info["host"] = host
	info["logPath"] = b.logger.GetLogPath()

	return info
}
