// Package mock provides test doubles for exercising the authorization flow
// end to end.
//
// Portal serves the three endpoints the client talks to: the authorization
// page, which either redirects back with a code or shows a sign-in form,
// the token endpoint, and a secured content resource that rejects missing,
// revoked or expired tokens. MockClock lets tests expire tokens without
// waiting.
package mock
