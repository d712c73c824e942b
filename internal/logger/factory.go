package logger

import "github.com/rs/zerolog"

// Static logger getters so every package logs under a stable name that
// matches the log.levels keys in config.yaml.

// GetAPILogger returns a logger for the HTTP API client
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}

// GetSessionLogger returns a logger for session changes
func GetSessionLogger() zerolog.Logger {
	return GetLogger("session")
}

// GetSyncLogger returns a logger for the task list synchronizer
func GetSyncLogger() zerolog.Logger {
	return GetLogger("sync")
}

// GetTUILogger returns a logger for TUI components
func GetTUILogger() zerolog.Logger {
	return GetLogger("tui")
}

// GetCLILogger returns a logger for cobra commands
func GetCLILogger() zerolog.Logger {
	return GetLogger("cli")
}
