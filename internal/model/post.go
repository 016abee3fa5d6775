package model

import "time"

// Post is one entry in the community feed. Posts are immutable once created.
//
// Author is a display string (a member's name or an organization's name),
// not a foreign key; AuthorType records which kind of account wrote it.
type Post struct {
	ID         string      `json:"id"         db:"id"`
	Author     string      `json:"author"     db:"author"`
	AuthorType AccountType `json:"authorType" db:"author_type"`
	Content    string      `json:"content"    db:"content"`
	Timestamp  time.Time   `json:"timestamp"  db:"timestamp"`
}

// FeedEvent is the change notification published when the post collection
// changes. Subscribers use it only as a trigger to re-read the feed.
type FeedEvent struct {
	PostID string `json:"postId"`
	Kind   string `json:"kind"`
}

// Feed event kinds. Posts can only be created. A resync event is raised
// locally after the notifier reconnects, since changes published while it
// was away were never delivered.
const (
	FeedEventCreated = "created"
	FeedEventResync  = "resync"
)
