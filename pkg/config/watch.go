package config

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marmos91/mountkeep/internal/logger"
)

// Watch monitors the configuration file and invokes onChange with the
// freshly loaded configuration whenever the file is rewritten.
//
// A change that fails to load or validate is logged and dropped; the
// previous configuration stays in effect. Watching stops when the
// process exits; there is no explicit unwatch.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//   - onChange: Called with the new configuration after a successful reload
func Watch(configPath string, onChange func(*Config)) error {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("cannot watch config file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("cannot watch config file: %w", err)
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		logger.Debug("Config file changed", "path", event.Name, "op", event.Op.String())

		cfg, err := Load(configPath)
		if err != nil {
			logger.Warn("Ignoring config change, reload failed", "path", configPath, "error", err)
			return
		}

		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}
