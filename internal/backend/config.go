package backend

import (
	"fmt"

	"cashflow/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	remoteType := RemoteType(appConfig.RemoteBackend)
	if !remoteType.IsValid() {
		return Config{}, fmt.Errorf("invalid remote backend in config: %s", appConfig.RemoteBackend)
	}
	prefsType := PrefsType(appConfig.PrefsBackend)
	if !prefsType.IsValid() {
		return Config{}, fmt.Errorf("invalid prefs backend in config: %s", appConfig.PrefsBackend)
	}

	return Config{
		Remote:      remoteType,
		Prefs:       prefsType,
		APIBaseURL:  appConfig.APIBaseURL,
		APITimeout:  appConfig.APITimeout,
		FixturePath: appConfig.FixturePath,
		PrefsDBPath: appConfig.PrefsDBPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote backend: %s", c.Remote)
	}
	if !c.Prefs.IsValid() {
		return fmt.Errorf("invalid prefs backend: %s", c.Prefs)
	}

	switch c.Remote {
	case APIRemote:
		if c.APIBaseURL == "" {
			return fmt.Errorf("API base URL is required for api backend")
		}
	case MemoryRemote:
		// A missing fixture file yields an empty store.
	}

	if c.Prefs == SQLitePrefs && c.PrefsDBPath == "" {
		return fmt.Errorf("preferences database path is required for sqlite prefs")
	}

	return nil
}
