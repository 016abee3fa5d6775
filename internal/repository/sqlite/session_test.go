package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/model"
)

func createTestCredential(t *testing.T, db *DB, email string) *model.Credential {
	t.Helper()
	cred := &model.Credential{Email: email, PasswordHash: "x"}
	if err := db.Credentials().Create(context.Background(), cred); err != nil {
		t.Fatalf("failed to create test credential: %v", err)
	}
	return cred
}

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	sessions := db.Sessions()
	ctx := context.Background()
	cred := createTestCredential(t, db, "ada@example.com")

	now := time.Now().UTC()
	sess := &model.Session{
		ID:        uuid.NewString(),
		UserID:    cred.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := sessions.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := sessions.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.UserID != cred.ID || !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Errorf("GetByID() = %+v, want %+v", got, sess)
	}

	if err := sessions.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := sessions.GetByID(ctx, sess.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByID() after Delete error = %v, want ErrNotFound", err)
	}

	// Second delete is a no-op.
	if err := sessions.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestSessionCreate_UnknownUser(t *testing.T) {
	sessions := newTestDB(t).Sessions()

	err := sessions.Create(context.Background(), &model.Session{
		ID:        uuid.NewString(),
		UserID:    "no-such-credential",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("Create() should fail the foreign key check for an unknown user")
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	db := newTestDB(t)
	sessions := db.Sessions()
	ctx := context.Background()
	cred := createTestCredential(t, db, "ada@example.com")

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mk := func(expires time.Time) *model.Session {
		sess := &model.Session{
			ID:        uuid.NewString(),
			UserID:    cred.ID,
			CreatedAt: expires.Add(-time.Hour),
			ExpiresAt: expires,
		}
		if err := sessions.Create(ctx, sess); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		return sess
	}
	stale := mk(now.Add(-time.Minute))
	edge := mk(now)
	live := mk(now.Add(time.Nanosecond))

	n, err := sessions.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteExpired() = %d, want 2", n)
	}

	for _, gone := range []*model.Session{stale, edge} {
		if _, err := sessions.GetByID(ctx, gone.ID); !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("GetByID(%s) error = %v, want ErrNotFound", gone.ID, err)
		}
	}
	if _, err := sessions.GetByID(ctx, live.ID); err != nil {
		t.Errorf("live session removed: %v", err)
	}

	// Nothing left to reclaim.
	if n, err := sessions.DeleteExpired(ctx, now); err != nil || n != 0 {
		t.Errorf("second DeleteExpired() = %d, %v, want 0, nil", n, err)
	}
}
