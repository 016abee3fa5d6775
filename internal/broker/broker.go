// Package broker carries feed change notifications over NATS.
//
// By default it runs an embedded NATS server inside the process and connects
// to it, so a single binary has working live updates. Setting Config.URL
// points it at an external server instead, which is how several gateway
// instances share one feed.
//
// Only change events travel over NATS. Subscribers treat an event as a
// trigger to re-read the posts table; the event itself is never the source
// of truth.
//
// CONNECTION LOSS:
// While the client is reconnecting, events published by other instances are
// lost. After a reconnect every listener gets a local resync event so it
// re-reads the feed. When the connection closes for good (Close, or the
// client gives up) every listener's drop callback runs once with
// ErrConnectionClosed and the listener is forgotten.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/sakif/community-hub/internal/model"
)

// DefaultSubject is where post changes are published.
const DefaultSubject = "community.posts.changed"

const (
	readyTimeout   = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var (
	// ErrNotConnected is returned by HealthCheck when the client has lost its server.
	ErrNotConnected = errors.New("broker: not connected")
	// ErrConnectionClosed is passed to drop callbacks when the connection is gone for good.
	ErrConnectionClosed = errors.New("broker: connection closed")
)

// Config selects the NATS server.
type Config struct {
	// URL of an external server. Empty starts an embedded one.
	URL string
	// Port for the embedded server. -1 picks a free port (tests).
	Port int
	// Subject for feed change events.
	Subject string
}

// Broker owns the NATS connection and, when embedded, the server.
type Broker struct {
	server  *server.Server
	nc      *nats.Conn
	subject string
	logger  *slog.Logger

	mu        sync.Mutex
	listeners map[uint64]*listener
	nextID    uint64
	closed    bool
}

// listener is one Subscribe call.
type listener struct {
	onEvent func(model.FeedEvent)
	onDrop  func(error)
}

// Start connects to NATS, starting the embedded server first if cfg.URL is empty.
func Start(cfg Config, logger *slog.Logger) (*Broker, error) {
	b := &Broker{
		subject:   cfg.Subject,
		logger:    logger,
		listeners: make(map[uint64]*listener),
	}
	if b.subject == "" {
		b.subject = DefaultSubject
	}

	url := cfg.URL
	if url == "" {
		ns, err := server.NewServer(&server.Options{
			Host:   "127.0.0.1",
			Port:   cfg.Port,
			NoLog:  true,
			NoSigs: true,
		})
		if err != nil {
			return nil, fmt.Errorf("broker: creating embedded server: %w", err)
		}

		go ns.Start()

		if !ns.ReadyForConnections(readyTimeout) {
			ns.Shutdown()
			return nil, fmt.Errorf("broker: embedded server not ready after %s", readyTimeout)
		}
		b.server = ns
		url = ns.ClientURL()
		logger.Info("embedded NATS server started", slog.String("url", url))
	}

	nc, err := nats.Connect(url,
		nats.Name("community-hub"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("NATS error", slog.String("error", err.Error()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
			b.resync()
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
			b.dropAll(ErrConnectionClosed)
		}),
	)
	if err != nil {
		b.shutdownServer()
		return nil, fmt.Errorf("broker: connecting to %s: %w", url, err)
	}
	b.nc = nc

	return b, nil
}

// Subject returns the subject events are published on.
func (b *Broker) Subject() string { return b.subject }

// Publish sends a change event and waits for the server to accept it.
func (b *Broker) Publish(ctx context.Context, event model.FeedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("broker: encoding event: %w", err)
	}

	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("broker: publishing to %s: %w", b.subject, err)
	}

	// FlushWithContext refuses contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("broker: flushing %s: %w", b.subject, err)
	}
	return nil
}

// Subscribe calls onEvent for every change event, and with a
// FeedEventResync event after a reconnect. Published events arrive on the
// subscription's own goroutine; a resync arrives on the connection's callback
// goroutine, so callers must serialise onEvent themselves.
//
// onDrop runs at most once, when the connection closes for good. No events
// follow it. The returned function unsubscribes; after it returns neither
// callback is called again by the broker.
func (b *Broker) Subscribe(onEvent func(model.FeedEvent), onDrop func(error)) (func() error, error) {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		var event model.FeedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Warn("dropping malformed feed event",
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
			return
		}
		onEvent(event)
	})
	if err != nil {
		return nil, fmt.Errorf("broker: subscribing to %s: %w", b.subject, err)
	}

	// Make sure the server knows about the subscription before we return,
	// so an event published right after Subscribe is not missed.
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("broker: confirming subscription to %s: %w", b.subject, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("broker: subscribing to %s: %w", b.subject, ErrConnectionClosed)
	}
	b.nextID++
	id := b.nextID
	b.listeners[id] = &listener{onEvent: onEvent, onDrop: onDrop}
	b.mu.Unlock()

	return func() error {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()

		// Already gone with the connection, or unsubscribed before.
		err := sub.Unsubscribe()
		if err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
			return fmt.Errorf("broker: unsubscribing from %s: %w", b.subject, err)
		}
		return nil
	}, nil
}

// snapshotListeners copies the listener set so callbacks run without b.mu
// held; a callback may unsubscribe.
func (b *Broker) snapshotListeners() []*listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		out = append(out, l)
	}
	return out
}

// resync tells every listener to re-read the feed.
func (b *Broker) resync() {
	listeners := b.snapshotListeners()
	b.logger.Info("resyncing feed listeners", slog.Int("listeners", len(listeners)))
	for _, l := range listeners {
		l.onEvent(model.FeedEvent{Kind: model.FeedEventResync})
	}
}

// dropAll forgets every listener and runs its drop callback.
func (b *Broker) dropAll(cause error) {
	b.mu.Lock()
	b.closed = true
	listeners := make([]*listener, 0, len(b.listeners))
	for id, l := range b.listeners {
		listeners = append(listeners, l)
		delete(b.listeners, id)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		if l.onDrop != nil {
			l.onDrop(cause)
		}
	}
}

// HealthCheck reports whether the client is connected.
func (b *Broker) HealthCheck() error {
	if b.nc == nil || !b.nc.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close drops the connection and stops the embedded server, if any. Every
// live listener's drop callback has run by the time Close returns.
func (b *Broker) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
	// The ClosedHandler does the same asynchronously; whichever runs first
	// finds the listeners, the other finds none.
	b.dropAll(ErrConnectionClosed)
	b.shutdownServer()
}

func (b *Broker) shutdownServer() {
	if b.server == nil {
		return
	}
	b.server.Shutdown()
	b.server.WaitForShutdown()
	b.logger.Info("embedded NATS server stopped")
}
