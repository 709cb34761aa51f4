package config

import (
	"sync"
)

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Get returns the process-wide configuration, loading it on first use.
// Load errors fall back to defaults so tools stay usable.
func Get() *Config {
	configMu.RLock()
	cfg := globalConfig
	configMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig == nil {
		loaded, err := Load("")
		if err != nil {
			loaded = Default()
		}
		globalConfig = loaded
	}
	return globalConfig
}

// Set replaces the process-wide configuration
func Set(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = cfg
}
