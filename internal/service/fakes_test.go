package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// In-memory implementations of the repository interfaces and the change
// notifier. Each fake has error fields that simulate a storage failure when
// set. All fakes are safe for concurrent use because feed deliveries run on
// a different goroutine from the test.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- credentials ---

type fakeCredentials struct {
	mu        sync.Mutex
	byEmail   map[string]*model.Credential
	nextID    int
	createErr error
	getErr    error
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{byEmail: make(map[string]*model.Credential)}
}

func (f *fakeCredentials) Create(_ context.Context, cred *model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	email := strings.ToLower(cred.Email)
	if _, ok := f.byEmail[email]; ok {
		return apperror.Conflict("credential", email)
	}
	f.nextID++
	cred.ID = fmt.Sprintf("user-%d", f.nextID)
	cred.Email = email
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	stored := *cred
	f.byEmail[email] = &stored
	return nil
}

func (f *fakeCredentials) GetByEmail(_ context.Context, email string) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	cred, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, apperror.NotFound("credential", email)
	}
	result := *cred
	return &result, nil
}

// --- sessions ---

type fakeSessions struct {
	mu        sync.Mutex
	byID      map[string]*model.Session
	createErr error
	deleteErr error
	purgeErr  error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: make(map[string]*model.Session)}
}

func (f *fakeSessions) Create(_ context.Context, sess *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	stored := *sess
	stored.Token = ""
	f.byID[sess.ID] = &stored
	return nil
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	result := *sess
	return &result, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	var n int64
	for id, sess := range f.byID {
		if !sess.ExpiresAt.After(now) {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// --- profiles ---

type fakeProfiles struct {
	mu      sync.Mutex
	byID    map[string]*model.Profile
	order   []string // insertion order, like rowid
	putErr  error
	getErr  error
	listErr error
	setErr  error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byID: make(map[string]*model.Profile)}
}

func copyProfile(p *model.Profile) *model.Profile {
	c := *p
	if p.Approved != nil {
		c.Approved = model.Bool(*p.Approved)
	}
	return &c
}

func (f *fakeProfiles) Put(_ context.Context, profile *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	if _, ok := f.byID[profile.ID]; !ok {
		f.order = append(f.order, profile.ID)
	}
	f.byID[profile.ID] = copyProfile(profile)
	return nil
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	return copyProfile(p), nil
}

func (f *fakeProfiles) GetByEmail(_ context.Context, email string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, id := range f.order {
		if p := f.byID[id]; p != nil && strings.EqualFold(p.Email, email) {
			return copyProfile(p), nil
		}
	}
	return nil, apperror.NotFound("profile", email)
}

func (f *fakeProfiles) UpdateDetails(_ context.Context, profile *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	p, ok := f.byID[profile.ID]
	if !ok {
		return apperror.NotFound("profile", profile.ID)
	}
	p.Name, p.OrgName = profile.Name, profile.OrgName
	p.Country, p.Sector, p.Briefing = profile.Country, profile.Sector, profile.Briefing
	p.Logo, p.Website = profile.Logo, profile.Website
	return nil
}

func (f *fakeProfiles) SetApproved(_ context.Context, id string, approved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	p, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("profile", id)
	}
	p.Approved = model.Bool(approved)
	return nil
}

func (f *fakeProfiles) SetAdmin(_ context.Context, id string, isAdmin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	p, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("profile", id)
	}
	p.IsAdmin = isAdmin
	return nil
}

func (f *fakeProfiles) ListByAccountType(_ context.Context, t model.AccountType) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Profile{}
	for _, id := range f.order {
		if p := f.byID[id]; p != nil && p.AccountType == t {
			out = append(out, *copyProfile(p))
		}
	}
	return out, nil
}

func (f *fakeProfiles) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

// --- posts ---

type fakePosts struct {
	mu        sync.Mutex
	posts     []model.Post
	nextID    int
	createErr error
	listErr   error
}

func (f *fakePosts) Create(_ context.Context, post *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	post.ID = fmt.Sprintf("post-%d", f.nextID)
	if post.Timestamp.IsZero() {
		post.Timestamp = time.Now()
	}
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakePosts) ListNewestFirst(_ context.Context) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := append([]model.Post{}, f.posts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (f *fakePosts) failList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// --- notifier ---

// fakeNotifier delivers synchronously on the publisher's goroutine, which
// keeps feed tests deterministic.
type fakeNotifier struct {
	mu           sync.Mutex
	listeners    map[int]fakeListener
	nextID       int
	published    []model.FeedEvent
	publishErr   error
	subscribeErr error
}

type fakeListener struct {
	onEvent func(model.FeedEvent)
	onDrop  func(error)
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{listeners: make(map[int]fakeListener)}
}

func (f *fakeNotifier) Publish(_ context.Context, event model.FeedEvent) error {
	f.mu.Lock()
	if f.publishErr != nil {
		f.mu.Unlock()
		return f.publishErr
	}
	f.published = append(f.published, event)
	f.mu.Unlock()

	f.deliver(event)
	return nil
}

func (f *fakeNotifier) Subscribe(onEvent func(model.FeedEvent), onDrop func(error)) (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.nextID++
	id := f.nextID
	f.listeners[id] = fakeListener{onEvent: onEvent, onDrop: onDrop}
	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
		return nil
	}, nil
}

// resync behaves like a reconnect: every listener gets a resync event.
func (f *fakeNotifier) resync() {
	f.deliver(model.FeedEvent{Kind: model.FeedEventResync})
}

// drop behaves like a lost connection: every listener is told once and
// forgotten.
func (f *fakeNotifier) drop(cause error) {
	f.mu.Lock()
	listeners := f.listeners
	f.listeners = make(map[int]fakeListener)
	f.mu.Unlock()

	for _, l := range listeners {
		l.onDrop(cause)
	}
}

func (f *fakeNotifier) deliver(event model.FeedEvent) {
	f.mu.Lock()
	listeners := make([]fakeListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l.onEvent(event)
	}
}

func (f *fakeNotifier) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}
