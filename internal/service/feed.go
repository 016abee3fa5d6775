package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/repository"
)

// MaxPostLength is the longest post content accepted, in characters.
const MaxPostLength = 5000

// ChangeNotifier fans feed change events out to every gateway instance.
// *broker.Broker implements it over NATS.
type ChangeNotifier interface {
	Publish(ctx context.Context, event model.FeedEvent) error
	// Subscribe calls onEvent for each change (and for a resync after a
	// reconnect) and onDrop at most once if the channel is lost for good.
	// onEvent calls may overlap. The returned function stops delivery.
	Subscribe(onEvent func(model.FeedEvent), onDrop func(error)) (func() error, error)
}

// SnapshotFunc receives the whole feed, newest first.
type SnapshotFunc func(posts []model.Post)

// FeedService publishes posts and keeps subscribers supplied with the feed.
type FeedService struct {
	posts    repository.PostRepository
	notifier ChangeNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewFeedService creates a FeedService.
func NewFeedService(posts repository.PostRepository, notifier ChangeNotifier, logger *slog.Logger) *FeedService {
	return &FeedService{
		posts:    posts,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish stores a new post stamped with the current time and notifies
// subscribers.
//
// The post is the source of truth: once it is stored, a failed notification
// is logged and the post is still returned. Subscribers will see it on the
// next change they are told about.
func (s *FeedService) Publish(ctx context.Context, content, author string, authorType model.AccountType) (*model.Post, error) {
	content = strings.TrimSpace(content)
	author = strings.TrimSpace(author)

	if content == "" {
		return nil, apperror.ValidationFailed("content", "post content is required")
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("post content must be %d characters or less", MaxPostLength))
	}
	if author == "" {
		return nil, apperror.ValidationFailed("author", "author is required")
	}
	if !authorType.Valid() {
		return nil, apperror.ValidationFailed("authorType", "author type must be local or organization")
	}

	post := &model.Post{
		Author:     author,
		AuthorType: authorType,
		Content:    content,
		Timestamp:  s.now().UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("author", author),
			slog.String("error", err.Error()),
		)
		return nil, apperror.DocumentWriteFailed("post", "", err)
	}

	event := model.FeedEvent{PostID: post.ID, Kind: model.FeedEventCreated}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Error("post stored but change notification failed",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("post published", slog.String("post_id", post.ID), slog.String("author", author))
	return post, nil
}

// Snapshot returns the whole feed, newest first.
func (s *FeedService) Snapshot(ctx context.Context) ([]model.Post, error) {
	posts, err := s.posts.ListNewestFirst(ctx)
	if err != nil {
		return nil, apperror.DocumentReadFailed("feed", err)
	}
	return posts, nil
}

// Subscribe delivers the current feed to fn, then delivers it again after
// every change, until the subscription is closed or ctx ends.
//
// Each delivery is the complete feed, newest first, not a diff. Deliveries
// never overlap. If re-reading the feed fails, or the notifier loses its
// channel for good, the subscription closes itself and Err reports why.
//
// fn runs on the notifier's goroutine; it may call Close.
func (s *FeedService) Subscribe(ctx context.Context, fn SnapshotFunc) (*Subscription, error) {
	sub := &Subscription{
		feed: s,
		fn:   fn,
		done: make(chan struct{}),
	}

	// Listen before the first read, so a change that lands in between is
	// delivered rather than lost. It waits on sub.mu until we are done.
	sub.mu.Lock()
	defer sub.mu.Unlock()

	unsubscribe, err := s.notifier.Subscribe(
		func(model.FeedEvent) { sub.refresh() },
		sub.drop,
	)
	if err != nil {
		return nil, apperror.SubscriptionFailed(err)
	}
	sub.setState(func() { sub.unsubscribe = unsubscribe })

	posts, err := s.posts.ListNewestFirst(ctx)
	if err != nil {
		_ = sub.Close()
		return nil, apperror.DocumentReadFailed("feed", err)
	}
	fn(posts)

	stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
	sub.setState(func() { sub.stop = stop })

	s.logger.Debug("feed subscription opened")
	return sub, nil
}

// Subscription is one live feed listener. Release it with Close.
type Subscription struct {
	feed *FeedService
	fn   SnapshotFunc

	mu     sync.Mutex // serialises deliveries
	closed atomic.Bool
	once   sync.Once
	done   chan struct{}

	stateMu     sync.Mutex
	unsubscribe func() error
	stop        func() bool
	err         error
	closeErr    error
}

func (s *Subscription) setState(f func()) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	f()
}

// Close stops delivery. It is safe to call more than once and from inside
// the snapshot callback; only the first call does anything. A delivery
// already running when Close is called may still finish.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)

		s.stateMu.Lock()
		stop, unsubscribe := s.stop, s.unsubscribe
		s.stateMu.Unlock()

		if stop != nil {
			stop()
		}
		var err error
		if unsubscribe != nil {
			err = unsubscribe()
		}
		s.setState(func() { s.closeErr = err })

		close(s.done)
		s.feed.logger.Debug("feed subscription closed")
	})

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.closeErr
}

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended on its own. It is nil while the
// subscription is live and after a plain Close.
func (s *Subscription) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.err
}

// drop ends the subscription because the notifier's channel is gone.
func (s *Subscription) drop(cause error) {
	s.feed.logger.Warn("feed subscription dropped: notifier lost", slog.String("error", cause.Error()))
	s.fail(apperror.SubscriptionFailed(cause))
}

// fail records err, unless the subscription already ended, and closes it.
func (s *Subscription) fail(err error) {
	if s.closed.Load() {
		return
	}
	s.setState(func() {
		if s.err == nil {
			s.err = err
		}
	})
	_ = s.Close()
}

// refresh re-reads the feed and hands it to fn.
func (s *Subscription) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}

	posts, err := s.feed.posts.ListNewestFirst(context.Background())
	if err != nil {
		s.feed.logger.Error("feed subscription dropped", slog.String("error", err.Error()))
		s.fail(apperror.SubscriptionFailed(apperror.DocumentReadFailed("feed", err)))
		return
	}

	if s.closed.Load() {
		return
	}
	s.fn(posts)
}
