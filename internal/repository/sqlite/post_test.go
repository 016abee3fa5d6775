package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/community-hub/internal/model"
)

func TestPostCreate(t *testing.T) {
	posts := newTestDB(t).Posts()

	post := &model.Post{Author: "Ada", AuthorType: model.AccountLocal, Content: "hello"}
	require.NoError(t, posts.Create(context.Background(), post))

	assert.NotEmpty(t, post.ID)
	assert.False(t, post.Timestamp.IsZero(), "zero timestamp is filled in")
}

func TestPostListNewestFirst(t *testing.T) {
	posts := newTestDB(t).Posts()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		require.NoError(t, posts.Create(ctx, &model.Post{
			Author:     "Acme",
			AuthorType: model.AccountOrganization,
			Content:    content,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := posts.ListNewestFirst(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "third", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, "first", got[2].Content)
	assert.Equal(t, model.AccountOrganization, got[0].AuthorType)
	assert.True(t, got[2].Timestamp.Equal(base))
}

func TestPostListNewestFirst_Empty(t *testing.T) {
	got, err := newTestDB(t).Posts().ListNewestFirst(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
