package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/auth"
	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/service"
)

// heartbeatInterval keeps idle streams alive through proxies that close
// quiet connections.
const heartbeatInterval = 25 * time.Second

// FeedHandler publishes posts and streams the feed.
type FeedHandler struct {
	feed     *service.FeedService
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewFeedHandler creates a FeedHandler. accounts is used to look up the
// author of a new post from the session.
func NewFeedHandler(feed *service.FeedService, accounts *service.AccountService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{feed: feed, accounts: accounts, logger: logger}
}

type publishRequest struct {
	Content string `json:"content"`
}

// HandlePublish creates a post as the signed-in user.
//
// HTTP: POST /api/posts
// REQUEST BODY: {"content":"hello"}
// Auth: required. The author name and type come from the caller's profile,
// never from the body.
func (h *FeedHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req publishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.accounts.CurrentProfile(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		writeError(w, apperror.Forbidden("a profile is required to post"))
		return
	}

	post, err := h.feed.Publish(r.Context(), req.Content, profile.DisplayName(), profile.AccountType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleList returns the whole feed, newest first.
//
// HTTP: GET /api/posts
func (h *FeedHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.feed.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleStream streams the feed as Server-Sent Events.
//
// HTTP: GET /api/feed/stream
//
// SERVER-SENT EVENTS:
// The response stays open. Every time the feed changes the client receives
// the full feed, newest first:
//
//	event: snapshot
//	data: [{"id":"...","author":"Ada",...}, ...]
//
// The first snapshot is sent as soon as the stream opens. A comment line
// (": ping") goes out every 25s so idle connections are not reaped. If the
// subscription breaks, an "error" event is sent and the stream ends; the
// browser's EventSource reconnects on its own.
//
// SLOW CLIENTS:
// Only the newest snapshot matters, so the buffer holds one. A snapshot that
// arrives while the previous one is still unsent replaces it.
func (h *FeedHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	snapshots := make(chan []model.Post, 1)
	sub, err := h.feed.Subscribe(r.Context(), func(posts []model.Post) {
		// Deliveries are serialised, so after draining there is room.
		select {
		case <-snapshots:
		default:
		}
		snapshots <- posts
	})
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	// The server's WriteTimeout would cut the stream; lift it for this response.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("feed stream cannot flush", slog.String("error", err.Error()))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-sub.Done():
			if err := sub.Err(); err != nil {
				_ = writeEvent(w, "error", ErrorResponse{Error: "subscription_error", Message: err.Error()})
				_ = rc.Flush()
			}
			return

		case posts := <-snapshots:
			if err := writeEvent(w, "snapshot", posts); err != nil {
				h.logger.Debug("feed stream closed by client", slog.String("error", err.Error()))
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// writeEvent writes one SSE event with a JSON payload on a single data line.
func writeEvent(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
