package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/audioroute/internal/errors"
)

const (
	componentConf  = "conf"
	configFileName = "config.yaml"
	appDirName     = "audioroute"
)

// GetDefaultConfigPaths returns the configuration directories searched in
// order: the user config directory, then the directory of the executable on
// Windows or /etc/audioroute elsewhere. When one of them already holds
// config.yaml only that one is returned.
func GetDefaultConfigPaths() ([]string, error) {
	userDir, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.New(err).
			Component(componentConf).
			Category(errors.CategorySystem).
			Context("operation", "get-user-config-dir").
			Build()
	}
	configPaths := []string{filepath.Join(userDir, appDirName)}

	if runtime.GOOS == "windows" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Component(componentConf).
				Category(errors.CategorySystem).
				Context("operation", "get-executable-path").
				Build()
		}
		configPaths = append(configPaths, filepath.Dir(exePath))
	} else {
		configPaths = append(configPaths, filepath.Join("/etc", appDirName))
	}

	for _, dir := range configPaths {
		if fileExists(filepath.Join(dir, configFileName)) {
			return []string{dir}, nil
		}
	}
	return configPaths, nil
}

// FindConfigFile returns the path of the first existing config.yaml.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, dir := range configPaths {
		if path := filepath.Join(dir, configFileName); fileExists(path) {
			return path, nil
		}
	}
	return "", errors.Newf("%s not found in %v", configFileName, configPaths).
		Component(componentConf).
		Category(errors.CategoryNotFound).
		Context("operation", "find-config-file").
		Build()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
