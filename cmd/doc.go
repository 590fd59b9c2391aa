// Package cmd implements the command-line interface for inboxtasks.
//
// This package provides the following commands:
//   - serve: Start the HTTP API server with the OAuth flow
//   - process: Run one processing pass over the inbox
//   - login: Authenticate a Google account from the terminal
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
