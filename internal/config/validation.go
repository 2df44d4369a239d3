package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks a fully defaulted configuration.
func Validate(cfg PortalAuthConfig) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(cfg.OAuth.ClientID) == "" {
		errs.Add("oauth.clientId", "is required (or set "+EnvClientID+")")
	}

	portalURL, err := url.Parse(cfg.Portal.URL)
	if err != nil || portalURL.Host == "" || (portalURL.Scheme != "https" && portalURL.Scheme != "http") {
		errs.Add("portal.url", "must be an absolute http(s) URL", cfg.Portal.URL)
	}

	redirectURI, err := url.Parse(cfg.OAuth.RedirectURI)
	if err != nil || redirectURI.Scheme == "" || redirectURI.Host == "" {
		errs.Add("oauth.redirectUri", "must have a scheme and host, e.g. portalauth://auth", cfg.OAuth.RedirectURI)
	}

	if cfg.OAuth.TokenLifetimeMinutes < 0 {
		errs.Add("oauth.tokenLifetimeMinutes", "must not be negative", cfg.OAuth.TokenLifetimeMinutes)
	}
	if cfg.OAuth.RetryCeiling < 0 {
		errs.Add("oauth.retryCeiling", "must not be negative", cfg.OAuth.RetryCeiling)
	}

	switch cfg.Storage.Backend {
	case StorageBackendFile:
		if cfg.Storage.Dir == "" {
			errs.Add("storage.dir", "is required for the file backend")
		}
	case StorageBackendMemory:
	case StorageBackendRedis:
		if cfg.Storage.Redis.Addr == "" {
			errs.Add("storage.redis.addr", "is required for the redis backend")
		}
	default:
		errs.Add("storage.backend", "must be one of file, memory, redis", cfg.Storage.Backend)
	}

	return errs
}
