// Package config loads the portalauth configuration.
//
// Configuration is read from config.yaml in a single directory, by default
// ~/.config/portalauth (override with --config-path). Values absent from the
// file keep their defaults, and the client ID may also come from the
// PORTALAUTH_CLIENT_ID environment variable.
//
// # Example
//
//	portal:
//	  url: https://www.arcgis.com
//	oauth:
//	  clientId: lgAdHkYZYlwwfAhC
//	  redirectUri: portalauth://auth
//	  tokenLifetimeMinutes: 20160
//	storage:
//	  backend: file
//	redirect:
//	  waitTimeout: 5m
//
// SECURITY: the storage backends keep access tokens in plaintext. They are
// not a secure credential store.
package config
