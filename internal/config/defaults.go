package config

import "time"

const (
	// DefaultPortalURL is the public ArcGIS Online portal.
	DefaultPortalURL = "https://www.arcgis.com"

	// DefaultAuthorizePath is the portal's OAuth2 authorization endpoint.
	DefaultAuthorizePath = "/sharing/rest/oauth2/authorize"

	// DefaultTokenPath is the portal's OAuth2 token endpoint.
	DefaultTokenPath = "/sharing/rest/oauth2/token"

	// DefaultRedirectURI is the custom scheme registered for the app.
	DefaultRedirectURI = "portalauth://auth"

	// DefaultTokenLifetimeMinutes requests two-week tokens.
	DefaultTokenLifetimeMinutes = 20160

	DefaultPendingCodeTTL  = 10 * time.Minute
	DefaultRetryCeiling    = 2
	DefaultExchangeTimeout = 30 * time.Second
	DefaultWaitTimeout     = 10 * time.Minute
	DefaultPollInterval    = time.Second

	DefaultRedisKeyPrefix = "portalauth:"
)

// GetDefaultConfig returns the default configuration. The client ID has no
// default and must be supplied by the user.
func GetDefaultConfig() PortalAuthConfig {
	return PortalAuthConfig{
		Portal: PortalConfig{
			URL:           DefaultPortalURL,
			AuthorizePath: DefaultAuthorizePath,
			TokenPath:     DefaultTokenPath,
		},
		OAuth: OAuthConfig{
			RedirectURI:          DefaultRedirectURI,
			TokenLifetimeMinutes: DefaultTokenLifetimeMinutes,
			PendingCodeTTL:       DefaultPendingCodeTTL,
			RetryCeiling:         DefaultRetryCeiling,
			ExchangeTimeout:      DefaultExchangeTimeout,
		},
		Storage: StorageConfig{
			Backend: StorageBackendFile,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: DefaultRedisKeyPrefix,
			},
		},
		Redirect: RedirectConfig{
			WaitTimeout:  DefaultWaitTimeout,
			PollInterval: DefaultPollInterval,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
