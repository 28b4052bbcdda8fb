// Package jackson is the web shell of Project Jackson: a navbar with three
// links and one auth button, backed by a single auth state cell.
//
// Auth state:
//   - Store holds the AuthState snapshot (status, access token, response
//     banner). Every mutation bumps Version and notifies subscribers, which
//     is how the server-sent event stream tells open pages to refresh.
//   - AuthController is the auth trigger. With no client ID configured it
//     toggles a no-auth session; otherwise it drives an IdentityClient
//     through interactive login, silent token acquisition and logout.
//     Collaborator failures never escape the trigger, they become the
//     response banner.
//
// Pages:
//   - ShellController serves the pages under the configured base path and
//     marks the navbar link matching the request path exactly.
//   - AuthContext is published into router locals so handlers and templates
//     read the same state.
//
// Activity sinks:
//   - ActivitySink receives one event per trigger outcome. Sinks run best
//     effort (errors are logged) so a database or a redis list can sit behind
//     them without blocking the auth flow.
package jackson
