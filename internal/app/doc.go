// Package app wires a run together: it configures the logger, loads the
// manifest, resolves the environment configuration, derives variants,
// dispatches components, and renders the summary. The cli package produces
// its Config; the cmd binary maps its errors to exit codes.
package app
