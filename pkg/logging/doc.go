// Package logging provides the structured logging used across portalauth.
//
// It is a thin layer over log/slog: the CLI initializes a text handler once
// with InitForCLI, command code logs through the subsystem-tagged helpers,
// and library packages receive a *slog.Logger obtained from For.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Config", "Loaded configuration from %s", path)
//	logging.Error("Login", err, "Authorization failed")
//
//	resolver := challenge.NewResolver(store, exchanger, handler,
//	    challenge.WithLogger(logging.For("Resolver")))
//
// # Audit Logging
//
// Token lifecycle changes are reported with Audit. Events carry the action
// and outcome only; access tokens and authorization codes are never logged.
//
//	logging.Audit(logging.AuditEvent{Action: "token_stored", Outcome: "success"})
package logging
