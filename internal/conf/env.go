// env.go - Environment variable configuration and validation for audioroute
package conf

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/audioroute/internal/audiocore/routing"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"audio.backend", "AUDIOROUTE_BACKEND", validateEnvBackend},
		{"audio.capture_device", "AUDIOROUTE_CAPTURE_DEVICE", nil},
		{"audio.playback_device", "AUDIOROUTE_PLAYBACK_DEVICE", nil},
		{"audio.sample_rate", "AUDIOROUTE_SAMPLE_RATE", validateEnvPositiveInt},
		{"audio.buffer_frames", "AUDIOROUTE_BUFFER_FRAMES", validateEnvPositiveInt},
		{"engine.record_seconds", "AUDIOROUTE_RECORD_SECONDS", validateEnvPositiveFloat},
		{"routing.mode", "AUDIOROUTE_MODE", validateEnvMode},
		{"routing.record", "AUDIOROUTE_RECORD", validateEnvRecord},
		{"telemetry.enabled", "AUDIOROUTE_TELEMETRY", validateEnvBool},
		{"telemetry.listen", "AUDIOROUTE_TELEMETRY_LISTEN", nil},
		{"telemetry.sentry.dsn", "AUDIOROUTE_SENTRY_DSN", nil},
		{"debug", "AUDIOROUTE_DEBUG", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

func validateEnvBackend(value string) error {
	if !slices.Contains(Backends, strings.ToLower(value)) {
		return fmt.Errorf("must be one of %v", Backends)
	}
	return nil
}

func validateEnvMode(value string) error {
	_, err := routing.ParseMode(value)
	return err
}

func validateEnvRecord(value string) error {
	_, err := routing.ParseRecord(value)
	return err
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
