package config

import "time"

// PortalAuthConfig is the top-level configuration structure for portalauth.
type PortalAuthConfig struct {
	Portal   PortalConfig   `yaml:"portal"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Storage  StorageConfig  `yaml:"storage"`
	Redirect RedirectConfig `yaml:"redirect"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// PortalConfig describes the mapping portal that issues tokens.
type PortalConfig struct {
	URL           string `yaml:"url"`                     // Portal base URL (default: https://www.arcgis.com)
	AuthorizePath string `yaml:"authorizePath,omitempty"` // Authorization endpoint path relative to URL
	TokenPath     string `yaml:"tokenPath,omitempty"`     // Token endpoint path relative to URL
}

// OAuthConfig holds the registered application's client settings.
type OAuthConfig struct {
	ClientID             string        `yaml:"clientId"`
	RedirectURI          string        `yaml:"redirectUri"`                    // Custom scheme (portalauth://auth) or loopback http URI
	TokenLifetimeMinutes int           `yaml:"tokenLifetimeMinutes,omitempty"` // Requested token lifetime (default: 20160, two weeks)
	PendingCodeTTL       time.Duration `yaml:"pendingCodeTTL,omitempty"`       // Age after which an unexchanged code is discarded (default: 10m)
	RetryCeiling         int           `yaml:"retryCeiling,omitempty"`         // Failed attempts before a challenge is cancelled (default: 2)
	ExchangeTimeout      time.Duration `yaml:"exchangeTimeout,omitempty"`      // HTTP timeout for the token endpoint (default: 30s)
}

// TokenLifetime returns the requested token lifetime as a duration.
func (o OAuthConfig) TokenLifetime() time.Duration {
	return time.Duration(o.TokenLifetimeMinutes) * time.Minute
}

// StorageBackend selects where tokens and pending codes are persisted.
type StorageBackend string

const (
	StorageBackendFile   StorageBackend = "file"
	StorageBackendMemory StorageBackend = "memory"
	StorageBackendRedis  StorageBackend = "redis"
)

// StorageConfig configures the token store.
//
// SECURITY: every backend stores the access token in plaintext.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend,omitempty"` // file (default), memory or redis
	Dir     string         `yaml:"dir,omitempty"`     // Directory for the file backend (default: config directory)
	Redis   RedisConfig    `yaml:"redis,omitempty"`
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// RedirectConfig controls how the authorization redirect is captured.
type RedirectConfig struct {
	// DisableBrowser skips the external-agent strategy and goes straight to
	// the embedded fallback.
	DisableBrowser bool          `yaml:"disableBrowser,omitempty"`
	WaitTimeout    time.Duration `yaml:"waitTimeout,omitempty"`  // How long to wait for a redirect (default: 10m)
	PollInterval   time.Duration `yaml:"pollInterval,omitempty"` // Poll interval for backends without change notification (default: 1s)
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error (default: info)
}
