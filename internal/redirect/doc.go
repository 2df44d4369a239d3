// Package redirect presents authorization flows to the user and captures
// the portal's redirect back to the application.
//
// Every strategy funnels the redirect URI through a single Interceptor,
// which persists the authorization code as the store's pending code:
//
//   - the platform browser, with the app re-invoked as
//     "portalauth redirect <uri>" or a loopback CallbackServer,
//   - an EmbeddedSurface that navigates in-process and cancels navigation
//     to the redirect URI,
//   - a PromptSurface for pasting the redirect URL by hand.
//
// Handler picks the strategy: external first, embedded only when no
// external handler is available.
package redirect
