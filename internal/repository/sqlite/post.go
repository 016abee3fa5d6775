package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/repository"
)

var _ repository.PostRepository = (*PostDB)(nil)

// PostDB is the posts table. Posts are never updated or deleted.
type PostDB struct {
	conn *sql.DB
}

// Create inserts post, assigning an xid ID. The timestamp is filled in with
// the current time when the caller left it zero.
func (p *PostDB) Create(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	if post.Timestamp.IsZero() {
		post.Timestamp = time.Now()
	}
	post.Timestamp = post.Timestamp.UTC()

	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO posts (id, author, author_type, content, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		post.ID,
		post.Author,
		string(post.AuthorType),
		post.Content,
		formatTime(post.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	return nil
}

// ListNewestFirst returns every post, newest first. Ties on timestamp are
// broken by ID, which is also time-ordered (xid).
func (p *PostDB) ListNewestFirst(ctx context.Context) ([]model.Post, error) {
	rows, err := p.conn.QueryContext(ctx,
		`SELECT id, author, author_type, content, timestamp
		 FROM posts
		 ORDER BY timestamp DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var (
			post model.Post
			ts   string
		)
		if err := rows.Scan(&post.ID, &post.Author, &post.AuthorType, &post.Content, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		if post.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("sqlite: post %s: %w", post.ID, err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating post rows: %w", err)
	}
	return posts, nil
}
