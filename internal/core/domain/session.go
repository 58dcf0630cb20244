package domain

import (
	"strings"
	"time"
)

// SessionCredential is the host application's bearer token for the
// logged-in user. It is opaque to everything except the session adapters.
type SessionCredential string

// IsZero reports whether no credential is present.
func (c SessionCredential) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

// String returns the raw bearer value.
func (c SessionCredential) String() string {
	return string(c)
}

// UserInfo is the identity carried by a session.
type UserInfo struct {
	// Subject is the stable user identifier (JWT "sub").
	Subject string `json:"subject,omitempty"`
	// Email is the identity key for connection records.
	Email string `json:"email"`
	// Name is the display name, if known.
	Name string `json:"name,omitempty"`
	// ExpiresAt is when the session credential stops being valid.
	// Zero when unknown.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// HasIdentity reports whether an email identity was established.
func (u *UserInfo) HasIdentity() bool {
	return u != nil && strings.TrimSpace(u.Email) != ""
}

// IsExpired returns true if the session has a known expiry in the past.
func (u *UserInfo) IsExpired() bool {
	if u == nil || u.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(u.ExpiresAt)
}

// NormalizeIdentity canonicalises an email identity for use as a record key.
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
