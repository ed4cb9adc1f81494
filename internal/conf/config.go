// config.go: settings struct of audioroute and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/audioroute/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// AudioSettings selects the audio host and its stream format.
type AudioSettings struct {
	Backend        string `yaml:"backend" mapstructure:"backend"`                 // auto, alsa, pulse, jack, wasapi, coreaudio or null
	CaptureDevice  string `yaml:"capture_device" mapstructure:"capture_device"`   // device name; empty selects the default device
	PlaybackDevice string `yaml:"playback_device" mapstructure:"playback_device"` // device name; empty selects the default device
	SampleRate     int    `yaml:"sample_rate" mapstructure:"sample_rate"`
	BufferFrames   int    `yaml:"buffer_frames" mapstructure:"buffer_frames"` // frames per block
	SplitDevices   bool   `yaml:"split_devices" mapstructure:"split_devices"` // open capture and playback as separate devices
	JitterBlocks   int    `yaml:"jitter_blocks" mapstructure:"jitter_blocks"` // capture blocks buffered between split devices
}

// PoolSettings sizes the graph buffer pool.
type PoolSettings struct {
	InitialChunks   int `yaml:"initial_chunks" mapstructure:"initial_chunks"`
	IncrementChunks int `yaml:"increment_chunks" mapstructure:"increment_chunks"`
	MaxBlocks       int `yaml:"max_blocks" mapstructure:"max_blocks"` // 0 = unbounded
}

// EngineSettings configures the routing engine.
type EngineSettings struct {
	RecordSeconds float64      `yaml:"record_seconds" mapstructure:"record_seconds"`
	Crossfade     bool         `yaml:"crossfade" mapstructure:"crossfade"`
	TestProcessor string       `yaml:"test_processor" mapstructure:"test_processor"` // fft, copy or gain
	GainDB        float64      `yaml:"gain_db" mapstructure:"gain_db"`
	Pool          PoolSettings `yaml:"pool" mapstructure:"pool"`
}

// RoutingSettings is the routing applied at startup and on config reload.
type RoutingSettings struct {
	Mode   string `yaml:"mode" mapstructure:"mode"`     // muted, playback, playback-to-input, direct or passthrough
	Record string `yaml:"record" mapstructure:"record"` // none, input or output
	Repeat bool   `yaml:"repeat" mapstructure:"repeat"`
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// TelemetrySettings configures the Prometheus endpoint and Sentry.
type TelemetrySettings struct {
	Enabled bool           `yaml:"enabled" mapstructure:"enabled"`
	Listen  string         `yaml:"listen" mapstructure:"listen"`
	Debug   bool           `yaml:"debug" mapstructure:"debug"` // serve pprof handlers
	Sentry  SentrySettings `yaml:"sentry" mapstructure:"sentry"`
}

// ControlSettings configures the terminal control surface.
type ControlSettings struct {
	Terminal bool `yaml:"terminal" mapstructure:"terminal"`
}

// Settings contains all configuration options for audioroute.
type Settings struct {
	Debug     bool                 `yaml:"debug" mapstructure:"debug"`
	Audio     AudioSettings        `yaml:"audio" mapstructure:"audio"`
	Engine    EngineSettings       `yaml:"engine" mapstructure:"engine"`
	Routing   RoutingSettings      `yaml:"routing" mapstructure:"routing"`
	Telemetry TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	Control   ControlSettings      `yaml:"control" mapstructure:"control"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables. A missing
// configuration file is created from the embedded default.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(""); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}
	return loadLocked()
}

// LoadFile is Load with an explicit configuration file, which must exist.
func LoadFile(path string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(path); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}
	return loadLocked()
}

func loadLocked() (*Settings, error) {
	settings, err := unmarshalSettings()
	if err != nil {
		return nil, err
	}
	settingsInstance = settings
	return settings, nil
}

func unmarshalSettings() (*Settings, error) {
	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper sets defaults and environment bindings and reads the config.
func initViper(path string) error {
	viper.SetConfigType("yaml")
	setDefaultConfig()
	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment configuration", logger.Error(err))
	}

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", path, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, p := range configPaths {
		viper.AddConfigPath(p)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, configFileName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, getDefaultConfig(), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded default configuration.
func getDefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return data
}

// GetSettings returns the settings of the last successful load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ConfigFileUsed returns the path of the loaded configuration file.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// SaveSettings writes settings back to the loaded configuration file.
func SaveSettings(settings *Settings) error {
	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		var err error
		if configPath, err = FindConfigFile(); err != nil {
			return fmt.Errorf("error finding config file: %w", err)
		}
	}
	if err := SaveYAMLConfig(configPath, settings); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	GetLogger().Info("settings saved", logger.String("path", configPath))
	return nil
}

// SaveYAMLConfig writes settings to configPath. It overwrites the file and
// does not preserve comments.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file next to the target so the rename is atomic.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error moving config file: %w", err)
	}
	return nil
}
