package oauth

import (
	"strconv"

	"golang.org/x/oauth2"
)

// expirationParam is the portal's parameter for the requested token
// lifetime, in minutes.
const expirationParam = "expiration"

// AuthorizationURL builds the authorization endpoint URL carrying
// response_type=code, client_id, redirect_uri and the requested expiration.
// It performs no I/O.
func AuthorizationURL(cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	var opts []oauth2.AuthCodeOption
	if minutes := cfg.lifetimeMinutes(); minutes > 0 {
		opts = append(opts, oauth2.SetAuthURLParam(expirationParam, strconv.Itoa(minutes)))
	}

	// An empty state keeps the state parameter out of the URL; the
	// redirect carries only the code.
	return cfg.oauth2Config().AuthCodeURL("", opts...), nil
}
