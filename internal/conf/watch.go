package conf

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/tphakala/audioroute/internal/logger"
)

// ChangeFunc receives the settings reloaded after the config file changed.
type ChangeFunc func(old, updated *Settings)

// Watch reloads the configuration whenever its file changes and passes the
// result to onChange. Files that no longer validate are logged and ignored.
// The watcher lives as long as the process.
func Watch(onChange ChangeFunc) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		handleConfigChange(e, onChange)
	})
	viper.WatchConfig()
}

func handleConfigChange(e fsnotify.Event, onChange ChangeFunc) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	log := GetLogger().With(logger.String("path", e.Name))

	settingsMutex.Lock()
	updated, err := unmarshalSettings()
	if err != nil {
		settingsMutex.Unlock()
		log.Warn("ignoring invalid config change", logger.Error(err))
		return
	}
	old := settingsInstance
	settingsInstance = updated
	settingsMutex.Unlock()

	log.Info("config reloaded", logger.String("op", e.Op.String()))
	if onChange != nil {
		onChange(old, updated)
	}
}
