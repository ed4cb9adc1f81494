// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"

	"github.com/tphakala/audioroute/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("audio.backend", "auto")
	viper.SetDefault("audio.capture_device", "")
	viper.SetDefault("audio.playback_device", "")
	viper.SetDefault("audio.sample_rate", 48000)
	viper.SetDefault("audio.buffer_frames", 256)
	viper.SetDefault("audio.split_devices", false)
	viper.SetDefault("audio.jitter_blocks", 4)

	viper.SetDefault("engine.record_seconds", 10.0)
	viper.SetDefault("engine.crossfade", true)
	viper.SetDefault("engine.test_processor", "fft")
	viper.SetDefault("engine.gain_db", 0.0)
	viper.SetDefault("engine.pool.initial_chunks", 32)
	viper.SetDefault("engine.pool.increment_chunks", 8)
	viper.SetDefault("engine.pool.max_blocks", 0)

	viper.SetDefault("routing.mode", "muted")
	viper.SetDefault("routing.record", "none")
	viper.SetDefault("routing.repeat", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "localhost:8090")
	viper.SetDefault("telemetry.debug", false)
	viper.SetDefault("telemetry.sentry.enabled", false)
	viper.SetDefault("telemetry.sentry.dsn", "")

	viper.SetDefault("control.terminal", true)

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}
