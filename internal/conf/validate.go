// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/tphakala/audioroute/internal/audiocore/routing"
	"github.com/tphakala/audioroute/internal/logger"
)

// Backends accepted by audio.backend.
var Backends = []string{"auto", "alsa", "pulse", "jack", "wasapi", "coreaudio", "null"}

// TestProcessors accepted by engine.test_processor.
var TestProcessors = []string{"fft", "copy", "gain"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		func(s *Settings) error { return validateAudioSettings(&s.Audio) },
		func(s *Settings) error { return validateEngineSettings(&s.Engine) },
		func(s *Settings) error { return validateRoutingSettings(&s.Routing) },
		func(s *Settings) error { return validateTelemetrySettings(&s.Telemetry) },
		func(s *Settings) error { return validateLoggingSettings(&s.Logging) },
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAudioSettings(settings *AudioSettings) error {
	var errs []string

	if !slices.Contains(Backends, strings.ToLower(settings.Backend)) {
		errs = append(errs, fmt.Sprintf("audio backend must be one of %v, got %q", Backends, settings.Backend))
	}
	if settings.SampleRate < 8000 || settings.SampleRate > 384000 {
		errs = append(errs, fmt.Sprintf("sample rate must be between 8000 and 384000, got %d", settings.SampleRate))
	}
	if settings.BufferFrames < 16 || settings.BufferFrames > 8192 {
		errs = append(errs, fmt.Sprintf("buffer frames must be between 16 and 8192, got %d", settings.BufferFrames))
	}
	if settings.SplitDevices && settings.JitterBlocks < 2 {
		errs = append(errs, fmt.Sprintf("jitter blocks must be at least 2 with split devices, got %d", settings.JitterBlocks))
	}

	if len(errs) > 0 {
		return fmt.Errorf("audio settings errors: %v", errs)
	}
	return nil
}

func validateEngineSettings(settings *EngineSettings) error {
	var errs []string

	if settings.RecordSeconds <= 0 || settings.RecordSeconds > 3600 {
		errs = append(errs, fmt.Sprintf("record seconds must be in (0, 3600], got %g", settings.RecordSeconds))
	}
	if !slices.Contains(TestProcessors, strings.ToLower(settings.TestProcessor)) {
		errs = append(errs, fmt.Sprintf("test processor must be one of %v, got %q", TestProcessors, settings.TestProcessor))
	}
	if settings.GainDB < -96 || settings.GainDB > 24 {
		errs = append(errs, fmt.Sprintf("gain must be between -96 and 24 dB, got %g", settings.GainDB))
	}
	if settings.Pool.InitialChunks <= 0 || settings.Pool.IncrementChunks <= 0 {
		errs = append(errs, "pool chunk counts must be positive")
	}
	if settings.Pool.MaxBlocks < 0 {
		errs = append(errs, "pool max blocks must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("engine settings errors: %v", errs)
	}
	return nil
}

func validateRoutingSettings(settings *RoutingSettings) error {
	if _, err := settings.Word(); err != nil {
		return fmt.Errorf("routing settings error: %w", err)
	}
	return nil
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	var errs []string

	if settings.Enabled {
		if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("invalid telemetry listen address %q: %v", settings.Listen, err))
		}
	}
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		errs = append(errs, "sentry is enabled but no DSN is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("telemetry settings errors: %v", errs)
	}
	return nil
}

func validateLoggingSettings(settings *logger.LoggingConfig) error {
	levels := []string{"trace", "debug", "info", "warn", "warning", "error"}
	if settings.DefaultLevel != "" && !slices.Contains(levels, strings.ToLower(settings.DefaultLevel)) {
		return fmt.Errorf("logging settings error: unknown level %q", settings.DefaultLevel)
	}
	return nil
}

// Word converts the routing section into a routing word.
func (r *RoutingSettings) Word() (routing.Word, error) {
	mode, err := routing.ParseMode(r.Mode)
	if err != nil {
		return 0, err
	}
	record, err := routing.ParseRecord(r.Record)
	if err != nil {
		return 0, err
	}

	w := mode.Word() | record
	if r.Repeat {
		w |= routing.Repeat
	}
	return w, nil
}
