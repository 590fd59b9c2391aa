// Package google provides shared OAuth2 configuration and token storage
// for all Google services used by inboxtasks (Gmail, Tasks, Calendar).
//
// Token exchange itself is delegated to golang.org/x/oauth2; this package
// only decides where tokens live (one JSON file per account under the
// data directory) and which scopes are requested.
//
// Two flows are supported:
//   - Web flow: the server redirects to AuthCodeURL and exchanges the code
//     on /oauth2callback.
//   - CLI flow: the login command prints the consent URL and reads the
//     pasted authorization code from stdin.
package google
