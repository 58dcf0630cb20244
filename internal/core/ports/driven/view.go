package driven

import "net/url"

// Location is the consuming view's address. The one-time authorization code
// arrives as a query parameter on it.
type Location interface {
	// Current returns a copy of the current address.
	Current() url.URL

	// Replace swaps the visible address without creating a history entry.
	Replace(next url.URL)
}

// Navigator moves the user to other entry points of the host application.
type Navigator interface {
	// RedirectToLogin sends the user to the login entry point.
	RedirectToLogin(target string)
}
