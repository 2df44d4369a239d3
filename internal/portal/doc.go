// Package portal is the resource access layer: it fetches secured portal
// resources and turns 401/403 responses and token error payloads into
// authentication challenges for the resolver.
package portal
