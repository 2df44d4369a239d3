// Package challenge answers authentication challenges raised by the portal
// client.
//
// For each challenge the Resolver consults the token store and returns one
// Outcome:
//
//  1. A cached, unexpired token is used directly. An expired token is
//     cleared and a new authorization flow is started. A token the portal
//     keeps rejecting is treated the same way once the retry ceiling is
//     reached.
//  2. A pending authorization code is exchanged for a token. The code is
//     cleared whether or not the exchange succeeds.
//  3. With neither, a new flow is started until the failure count reaches
//     the retry ceiling, after which the access is cancelled.
//
// Failures never escape Resolve: they are logged, shown through the
// Notifier and carried as the Outcome's Reason.
package challenge
