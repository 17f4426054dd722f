// Package session provides shared session constants used by both
// the middleware and csrf packages.
package session

const (
	// CookieName is the cookie set by the identity provider for browser
	// clients. API clients send the same token as a bearer token.
	CookieName = "aiwriter_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"
)
