package google

// DefaultOAuthScopes are the Google OAuth scopes required by inboxtasks.
//
// The scopes provide access to:
//   - Gmail: read-only (emails are never modified or sent)
//   - Google Tasks: full access (task creation)
//   - Google Calendar: full access (event creation)
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Gmail scope
	"https://www.googleapis.com/auth/gmail.readonly",

	// Google Tasks scope
	"https://www.googleapis.com/auth/tasks",

	// Google Calendar scope
	"https://www.googleapis.com/auth/calendar",
}
