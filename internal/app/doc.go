// Package app wires the authorization components into a Session.
//
// A Session is constructed once from the loaded configuration: it opens the
// token store backend (file, memory or redis), builds the exchanger, the
// redirect handler with its strategies, the challenge resolver and the
// portal client, and injects each into the next. Commands use it to log in,
// log out, report status and fetch secured resources.
package app
