// Package cli provides the interactive Guardline command-line client.
//
// It wires configuration, the local token store, the identity API client and
// the session manager into an interactive REPL. Typical flow: restore a
// persisted session on start, prompt for credentials when needed, and
// execute user commands.
//
// Key features:
//   - Login with optional two-factor completion
//   - Manual and scheduled token refresh
//   - Route checks against the navigation guard
//   - Whoami / Logout
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
