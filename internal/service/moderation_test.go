package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/model"
)

func TestListPending_StrictlyFalse(t *testing.T) {
	repo := newFakeProfiles()
	seedProfiles(t, repo,
		org("pending", "", "", model.Bool(false)),
		org("approved", "", "", model.Bool(true)),
		org("unset", "", "", nil),
		local("person", ""),
	)
	svc := NewModerationService(repo, discardLogger())

	got, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pending"}, ids(got))
}

func TestSetApproval(t *testing.T) {
	repo := newFakeProfiles()
	seedProfiles(t, repo, org("acme", "", "", model.Bool(false)))
	svc := NewModerationService(repo, discardLogger())
	ctx := context.Background()

	require.NoError(t, svc.SetApproval(ctx, "acme", true))
	p, _ := repo.GetByID(ctx, "acme")
	assert.True(t, p.IsApproved())

	// Overwrites in both directions.
	require.NoError(t, svc.SetApproval(ctx, "acme", false))
	p, _ = repo.GetByID(ctx, "acme")
	assert.True(t, p.IsPending())
}

func TestSetApproval_Errors(t *testing.T) {
	repo := newFakeProfiles()
	svc := NewModerationService(repo, discardLogger())
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetApproval(ctx, " ", true), apperror.ErrValidation)
	assert.ErrorIs(t, svc.SetApproval(ctx, "ghost", true), apperror.ErrNotFound)

	seedProfiles(t, repo, org("acme", "", "", model.Bool(false)))
	repo.setErr = errors.New("disk full")
	assert.ErrorIs(t, svc.SetApproval(ctx, "acme", true), apperror.ErrDocumentWrite)
}

func TestSetAdmin(t *testing.T) {
	repo := newFakeProfiles()
	seedProfiles(t, repo, local("ada", ""))
	svc := NewModerationService(repo, discardLogger())
	ctx := context.Background()

	p, err := svc.SetAdmin(ctx, "ADA@x.com", true)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	isAdmin, err := svc.IsAdmin(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	_, err = svc.SetAdmin(ctx, "ada@x.com", false)
	require.NoError(t, err)
	isAdmin, _ = svc.IsAdmin(ctx, "ada")
	assert.False(t, isAdmin)

	_, err = svc.SetAdmin(ctx, "ghost@x.com", true)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	isAdmin, err = svc.IsAdmin(ctx, "ghost")
	assert.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestListPending_ReadFailure(t *testing.T) {
	repo := newFakeProfiles()
	repo.listErr = errors.New("timeout")

	_, err := NewModerationService(repo, discardLogger()).ListPending(context.Background())
	assert.ErrorIs(t, err, apperror.ErrDocumentRead)
}
