package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/community-hub/internal/model"
)

// stubResolver accepts exactly one token.
type stubResolver struct {
	token string
	sess  *model.Session
}

func (s *stubResolver) ResolveSession(_ context.Context, token string) (*model.Session, error) {
	if token != s.token {
		return nil, errors.New("unknown token")
	}
	return s.sess, nil
}

func newStub() *stubResolver {
	return &stubResolver{token: "good", sess: &model.Session{ID: "s1", UserID: "u1"}}
}

// echoSession writes the user id from context, or "anon".
var echoSession = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if sess, ok := SessionFromContext(r.Context()); ok {
		_, _ = w.Write([]byte(sess.UserID))
		return
	}
	_, _ = w.Write([]byte("anon"))
})

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(newStub())(echoSession)

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "u1", rr.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "good"})
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejected token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer revoked")
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	h := OptionalAuth(newStub())(echoSession)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anon", rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "u1", rr.Body.String())
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, "", TokenFromRequest(req))

	req.Header.Set("Authorization", "bearer  abc ")
	assert.Equal(t, "abc", TokenFromRequest(req), "scheme is case-insensitive")

	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Equal(t, "", TokenFromRequest(req), "non-bearer schemes are ignored")
}
