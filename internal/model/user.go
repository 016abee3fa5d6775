// Package model defines the data structures used throughout the application.
package model

import "time"

// Credential is the email/password login for an account.
//
// The ID is generated when the credential is created (xid) and becomes the
// profile's ID as well. PasswordHash is a bcrypt hash, never the plaintext,
// and is never serialised to JSON.
type Credential struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"` // stored lower-cased
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Session is the authenticated identity context for one sign-in.
//
// It is passed explicitly to every session-scoped operation instead of being
// looked up from a process-wide "current user". Token is the signed JWT handed
// to the client; it carries UserID as its subject and ID as its token id.
type Session struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	Token     string    `json:"token,omitempty" db:"-"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}
