package oauth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Config is the immutable client configuration for the single portal this
// module authenticates against. It is built once at startup.
type Config struct {
	// PortalURL is the portal base URL, e.g. https://www.arcgis.com.
	PortalURL string

	// AuthorizePath and TokenPath are joined onto PortalURL.
	AuthorizePath string
	TokenPath     string

	// ClientID is the registered application's client id.
	ClientID string

	// RedirectURI is the registered redirect, e.g. portalauth://auth.
	RedirectURI string

	// TokenLifetime is the token lifetime requested from the portal and
	// used to compute the stored expiry.
	TokenLifetime time.Duration
}

// AuthorizationEndpoint returns the absolute authorization endpoint URL.
func (c Config) AuthorizationEndpoint() string {
	return joinURL(c.PortalURL, c.AuthorizePath)
}

// TokenEndpoint returns the absolute token endpoint URL.
func (c Config) TokenEndpoint() string {
	return joinURL(c.PortalURL, c.TokenPath)
}

// Validate checks that the configuration can produce usable endpoints.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client id is required")
	}
	if _, err := url.ParseRequestURI(c.AuthorizationEndpoint()); err != nil {
		return fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if _, err := url.ParseRequestURI(c.TokenEndpoint()); err != nil {
		return fmt.Errorf("invalid token endpoint: %w", err)
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("redirect URI is required")
	}
	return nil
}

// lifetimeMinutes is the value of the portal's "expiration" parameter.
func (c Config) lifetimeMinutes() int {
	return int(c.TokenLifetime / time.Minute)
}

// oauth2Config maps the portal configuration onto golang.org/x/oauth2.
// The portal expects client_id in the form body of a public client.
func (c Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthorizationEndpoint(),
			TokenURL:  c.TokenEndpoint(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
