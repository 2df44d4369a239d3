// Package oauth implements the client side of the portal's OAuth2
// authorization-code grant: building the authorization URL and exchanging
// an authorization code for an access token.
//
// Both operations delegate the protocol details to golang.org/x/oauth2. The
// portal is treated as a public client: client_id travels in the request
// body and no client secret is sent.
//
// # Usage
//
//	cfg := oauth.Config{
//	    PortalURL:     "https://www.arcgis.com",
//	    AuthorizePath: "/sharing/rest/oauth2/authorize",
//	    TokenPath:     "/sharing/rest/oauth2/token",
//	    ClientID:      clientID,
//	    RedirectURI:   "portalauth://auth",
//	    TokenLifetime: 20160 * time.Minute,
//	}
//
//	authURL, err := oauth.AuthorizationURL(cfg)
//
//	exchanger := oauth.NewExchanger(cfg)
//	token, err := exchanger.Exchange(ctx, code)
//	if errors.Is(err, oauth.ErrExchangeFailed) { ... }
package oauth
