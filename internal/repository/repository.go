// Package repository declares the storage interfaces the hub depends on.
//
// The service layer only sees these interfaces; internal/repository/sqlite is
// the production implementation and the service tests use in-memory fakes.
// Every "not found" is reported as apperror.ErrNotFound.
package repository

import (
	"context"
	"time"

	"github.com/sakif/community-hub/internal/model"
)

// CredentialRepository stores email/password logins.
type CredentialRepository interface {
	// Create assigns ID and CreatedAt. A duplicate email returns apperror.ErrConflict.
	Create(ctx context.Context, cred *model.Credential) error
	GetByEmail(ctx context.Context, email string) (*model.Credential, error)
}

// SessionRepository stores live sessions. Deleting a session signs it out.
type SessionRepository interface {
	Create(ctx context.Context, sess *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	// Delete is idempotent: deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes every session that expired at or before now and
	// reports how many went.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ProfileRepository stores profile documents keyed by account ID.
type ProfileRepository interface {
	// Put writes the whole document, replacing any existing one.
	Put(ctx context.Context, profile *model.Profile) error
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	// UpdateDetails writes the user-editable fields (names and metadata) only.
	UpdateDetails(ctx context.Context, profile *model.Profile) error
	SetApproved(ctx context.Context, id string, approved bool) error
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	// ListByAccountType returns every profile of the given type, in storage order.
	ListByAccountType(ctx context.Context, accountType model.AccountType) ([]model.Profile, error)
}

// PostRepository stores feed posts.
type PostRepository interface {
	// Create assigns ID (and Timestamp when zero).
	Create(ctx context.Context, post *model.Post) error
	// ListNewestFirst returns the whole feed ordered by timestamp descending.
	ListNewestFirst(ctx context.Context) ([]model.Post, error)
}
