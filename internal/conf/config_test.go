package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audioroute/internal/audiocore/routing"
)

// writeConfig writes content to config.yaml in a fresh directory and resets
// viper so the test starts from defaults.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEmbeddedDefaultConfigValidates(t *testing.T) {
	path := writeConfig(t, string(getDefaultConfig()))

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "auto", settings.Audio.Backend)
	assert.Equal(t, 48000, settings.Audio.SampleRate)
	assert.Equal(t, 256, settings.Audio.BufferFrames)
	assert.InDelta(t, 10.0, settings.Engine.RecordSeconds, 0)
	assert.Equal(t, "fft", settings.Engine.TestProcessor)
	assert.Equal(t, 32, settings.Engine.Pool.InitialChunks)
	assert.Equal(t, "muted", settings.Routing.Mode)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestDefaultsFillMissingKeys(t *testing.T) {
	path := writeConfig(t, "audio:\n  sample_rate: 44100\n")

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 44100, settings.Audio.SampleRate)
	assert.Equal(t, 256, settings.Audio.BufferFrames)
	assert.True(t, settings.Engine.Crossfade)
	assert.Equal(t, "localhost:8090", settings.Telemetry.Listen)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "routing:\n  mode: muted\n")
	t.Setenv("AUDIOROUTE_MODE", "passthrough")
	t.Setenv("AUDIOROUTE_BUFFER_FRAMES", "512")

	settings, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "passthrough", settings.Routing.Mode)
	assert.Equal(t, 512, settings.Audio.BufferFrames)
}

func TestLoadFileRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "audio:\n  backend: oss\n"},
		{"tiny buffer", "audio:\n  buffer_frames: 4\n"},
		{"zero record period", "engine:\n  record_seconds: 0\n"},
		{"unknown test processor", "engine:\n  test_processor: reverb\n"},
		{"unknown mode", "routing:\n  mode: loop\n"},
		{"unknown record", "routing:\n  record: both\n"},
		{"sentry without dsn", "telemetry:\n  sentry:\n    enabled: true\n"},
		{"bad listen address", "telemetry:\n  enabled: true\n  listen: nowhere\n"},
		{"split without jitter room", "audio:\n  split_devices: true\n  jitter_blocks: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadFile(path)
			require.Error(t, err)
			var ve ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestRoutingSettingsWord(t *testing.T) {
	tests := []struct {
		settings RoutingSettings
		want     routing.Word
	}{
		{RoutingSettings{Mode: "muted", Record: "none"}, routing.Muted},
		{RoutingSettings{Mode: "playback", Record: "", Repeat: true}, routing.Playback | routing.Repeat},
		{RoutingSettings{Mode: "playback-to-input", Record: "output"}, routing.Playback | routing.ToInput | routing.RecordOutput},
		{RoutingSettings{Mode: "Direct", Record: "input"}, routing.Direct | routing.RecordInput},
		{RoutingSettings{Mode: "passthrough"}, routing.Passthrough},
	}
	for _, tt := range tests {
		t.Run(tt.settings.Mode, func(t *testing.T) {
			w, err := tt.settings.Word()
			require.NoError(t, err)
			assert.Equal(t, tt.want, w)
		})
	}
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	path := writeConfig(t, string(getDefaultConfig()))
	settings, err := LoadFile(path)
	require.NoError(t, err)

	settings.Audio.CaptureDevice = "USB Audio"
	settings.Routing.Mode = "direct"
	require.NoError(t, SaveYAMLConfig(path, settings))

	viper.Reset()
	reloaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "USB Audio", reloaded.Audio.CaptureDevice)
	assert.Equal(t, "direct", reloaded.Routing.Mode)
	assert.Equal(t, settings.Engine, reloaded.Engine)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is cleaned up")
}

func TestConfigChangeReloadsValidFiles(t *testing.T) {
	path := writeConfig(t, "routing:\n  mode: muted\n")
	_, err := LoadFile(path)
	require.NoError(t, err)

	var gotOld, gotNew *Settings
	onChange := func(old, updated *Settings) { gotOld, gotNew = old, updated }

	require.NoError(t, os.WriteFile(path, []byte("routing:\n  mode: passthrough\n"), 0o600))
	require.NoError(t, viper.ReadInConfig())
	handleConfigChange(fsnotify.Event{Name: path, Op: fsnotify.Write}, onChange)

	require.NotNil(t, gotNew)
	assert.Equal(t, "muted", gotOld.Routing.Mode)
	assert.Equal(t, "passthrough", gotNew.Routing.Mode)
	assert.Same(t, gotNew, GetSettings())

	// An invalid edit keeps the last good settings.
	gotNew = nil
	require.NoError(t, os.WriteFile(path, []byte("routing:\n  mode: loop\n"), 0o600))
	require.NoError(t, viper.ReadInConfig())
	handleConfigChange(fsnotify.Event{Name: path, Op: fsnotify.Write}, onChange)
	assert.Nil(t, gotNew)
	assert.Equal(t, "passthrough", GetSettings().Routing.Mode)

	// Events other than writes are ignored.
	handleConfigChange(fsnotify.Event{Name: path, Op: fsnotify.Chmod}, onChange)
	assert.Nil(t, gotNew)
}

func TestDefaultConfigPathsPreferExistingFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honored on linux")
	}
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	paths, err := GetDefaultConfigPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, "audioroute"), "/etc/audioroute"}, paths)

	_, err = FindConfigFile()
	if _, statErr := os.Stat("/etc/audioroute/config.yaml"); statErr != nil {
		require.Error(t, err)
	}

	dir := filepath.Join(home, "audioroute")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), getDefaultConfig(), 0o600))

	paths, err = GetDefaultConfigPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, paths)

	found, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), found)
}
