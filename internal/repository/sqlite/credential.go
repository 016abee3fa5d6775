package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/repository"
)

// compile-time check that *CredentialDB implements repository.CredentialRepository
var _ repository.CredentialRepository = (*CredentialDB)(nil)

// CredentialDB is the credentials table.
type CredentialDB struct {
	conn *sql.DB
}

// Create inserts a new credential.
//
// ID GENERATION WITH xid:
// The credential ID is generated here and becomes the account's identifier
// everywhere else (profile ID, session user ID, JWT subject).
//
// The email is lower-cased before the insert. The UNIQUE constraint on the
// column is what rejects a second account with the same address; we turn
// the driver error into apperror.ErrConflict so the service can tell a
// duplicate apart from a broken database.
func (c *CredentialDB) Create(ctx context.Context, cred *model.Credential) error {
	cred.ID = xid.New().String()
	cred.Email = strings.ToLower(strings.TrimSpace(cred.Email))
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	cred.CreatedAt = cred.CreatedAt.UTC()

	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO credentials (id, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		cred.ID,
		cred.Email,
		cred.PasswordHash,
		formatTime(cred.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("credential", cred.Email)
		}
		return fmt.Errorf("sqlite: creating credential: %w", err)
	}

	return nil
}

// GetByEmail looks a credential up by address, case-insensitively.
// Returns apperror.ErrNotFound if no credential exists for that email.
func (c *CredentialDB) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	var (
		cred      model.Credential
		createdAt string
	)

	email = strings.ToLower(strings.TrimSpace(email))
	err := c.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at
		 FROM credentials WHERE email = ?`,
		email,
	).Scan(&cred.ID, &cred.Email, &cred.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("credential", email)
		}
		return nil, fmt.Errorf("sqlite: getting credential %s: %w", email, err)
	}

	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: credential %s: %w", cred.ID, err)
	}
	return &cred, nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
