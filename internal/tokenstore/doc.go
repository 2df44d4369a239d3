// Package tokenstore persists the access token, its expiry, and a pending
// authorization code.
//
// Three backends implement Store:
//   - FileStore: one JSON document (state.json) in the config directory,
//     shared with the `portalauth redirect` process and watched with fsnotify
//   - MemoryStore: process-local, used by tests and --store=memory
//   - RedisStore: a single redis hash, for hosts sharing one login
//
// The persisted layout is the same everywhere:
//
//	authorization_code              string, absent when no code is pending
//	authorization_code_captured_at  epoch milliseconds
//	access_token                    string, absent when no token is held
//	access_token_expiry             epoch milliseconds, 0 = no expiry recorded
//
// SECURITY: tokens are stored in plaintext. This package is not a secure
// credential store.
package tokenstore
