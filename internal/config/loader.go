package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"portalauth/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/portalauth"
	configFileName = "config.yaml"
)

// EnvClientID overrides oauth.clientId when set.
const EnvClientID = "PORTALAUTH_CLIENT_ID"

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath on top of the defaults and
// validates the result. A missing file is not an error.
func LoadConfig(configPath string) (PortalAuthConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return PortalAuthConfig{}, ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: "io",
			Message:   err.Error(),
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return PortalAuthConfig{}, ConfigurationError{
				FilePath:    configFilePath,
				ErrorType:   "parse",
				Message:     err.Error(),
				Suggestions: []string{"Check the YAML syntax of " + configFileName},
			}
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if clientID := os.Getenv(EnvClientID); clientID != "" {
		config.OAuth.ClientID = clientID
	}

	applyDefaults(&config, configPath)

	if errs := Validate(config); errs.HasErrors() {
		return PortalAuthConfig{}, ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: "validation",
			Message:   errs.Error(),
		}
	}

	return config, nil
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(config *PortalAuthConfig, configPath string) {
	defaults := GetDefaultConfig()

	if config.Portal.URL == "" {
		config.Portal.URL = defaults.Portal.URL
	}
	if config.Portal.AuthorizePath == "" {
		config.Portal.AuthorizePath = defaults.Portal.AuthorizePath
	}
	if config.Portal.TokenPath == "" {
		config.Portal.TokenPath = defaults.Portal.TokenPath
	}
	if config.OAuth.RedirectURI == "" {
		config.OAuth.RedirectURI = defaults.OAuth.RedirectURI
	}
	if config.OAuth.TokenLifetimeMinutes == 0 {
		config.OAuth.TokenLifetimeMinutes = defaults.OAuth.TokenLifetimeMinutes
	}
	if config.OAuth.PendingCodeTTL == 0 {
		config.OAuth.PendingCodeTTL = defaults.OAuth.PendingCodeTTL
	}
	if config.OAuth.RetryCeiling == 0 {
		config.OAuth.RetryCeiling = defaults.OAuth.RetryCeiling
	}
	if config.OAuth.ExchangeTimeout == 0 {
		config.OAuth.ExchangeTimeout = defaults.OAuth.ExchangeTimeout
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = defaults.Storage.Backend
	}
	if config.Storage.Dir == "" {
		config.Storage.Dir = configPath
	}
	if config.Storage.Redis.Addr == "" {
		config.Storage.Redis.Addr = defaults.Storage.Redis.Addr
	}
	if config.Storage.Redis.KeyPrefix == "" {
		config.Storage.Redis.KeyPrefix = defaults.Storage.Redis.KeyPrefix
	}
	if config.Redirect.WaitTimeout == 0 {
		config.Redirect.WaitTimeout = defaults.Redirect.WaitTimeout
	}
	if config.Redirect.PollInterval == 0 {
		config.Redirect.PollInterval = defaults.Redirect.PollInterval
	}
	if config.Logging.Level == "" {
		config.Logging.Level = defaults.Logging.Level
	}
}
