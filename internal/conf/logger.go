// Package conf provides configuration management for audioroute.
package conf

import "github.com/tphakala/audioroute/internal/logger"

// GetLogger returns the config package logger. It is fetched from the
// global logger each time so it follows a logger set after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
