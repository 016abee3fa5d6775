package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/auth"
	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/service"
)

// AccountHandler exposes registration, sessions and profile edits.
//
// HANDLER RESPONSIBILITIES:
//   - HandleCreateAccount → POST   /api/accounts
//   - HandleSignIn        → POST   /api/sessions (sets the token cookie)
//   - HandleSignOut       → DELETE /api/sessions/current (clears it)
//   - HandleMe            → GET    /api/me
//   - HandleUpdateProfile → PATCH  /api/users/{id}
//
// DEPENDENCY CHAIN:
//   - accounts   *service.AccountService    → all account rules
//   - moderation *service.ModerationService → admin lookups for "self or admin"
type AccountHandler struct {
	accounts     *service.AccountService
	moderation   *service.ModerationService
	secureCookie bool
	logger       *slog.Logger
}

// NewAccountHandler creates an AccountHandler. secureCookie marks the session
// cookie Secure; turn it off only for plain-HTTP local development.
func NewAccountHandler(
	accounts *service.AccountService,
	moderation *service.ModerationService,
	secureCookie bool,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		moderation:   moderation,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// createAccountRequest is the registration body. accountType selects which
// of name / orgName is used.
type createAccountRequest struct {
	AccountType model.AccountType `json:"accountType"`
	Email       string            `json:"email"`
	Password    string            `json:"password"`
	Name        string            `json:"name"`
	OrgName     string            `json:"orgName"`
	model.Metadata
}

// signup turns the flat request into the typed signup variant.
func (req createAccountRequest) signup() (model.Signup, error) {
	switch req.AccountType {
	case model.AccountLocal:
		if req.OrgName != "" {
			return nil, apperror.ValidationFailed("orgName", "local accounts have a name, not an orgName")
		}
		return model.LocalSignup{Name: req.Name, Metadata: req.Metadata}, nil
	case model.AccountOrganization:
		if req.Name != "" {
			return nil, apperror.ValidationFailed("name", "organizations have an orgName, not a name")
		}
		return model.OrganizationSignup{OrgName: req.OrgName, Metadata: req.Metadata}, nil
	}
	return nil, apperror.ValidationFailed("accountType", "account type must be local or organization")
}

// HandleCreateAccount registers a new account.
//
// HTTP: POST /api/accounts
// REQUEST BODY: {"accountType":"organization","email":"acme@x.com","password":"...","orgName":"Acme","country":"Jordan"}
// RESPONSE: 201 with the created profile. Organizations start with approved=false.
func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	signup, err := req.signup()
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.accounts.CreateAccount(r.Context(), req.Email, req.Password, signup)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signInResponse carries the token for clients that don't use cookies.
type signInResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Profile   *model.Profile `json:"profile"`
}

// HandleSignIn authenticates and opens a session.
//
// HTTP: POST /api/sessions
// REQUEST BODY: {"email":"ada@x.com","password":"..."}
//
// The token is returned in the body AND set as an HttpOnly cookie:
//   - HttpOnly: JavaScript can't read it (XSS can't steal it)
//   - SameSite=Lax: not sent on cross-site POSTs
//   - Expires: matches the session expiry
//
// An organization that is not yet approved gets 403 and no cookie.
func (h *AccountHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Session.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, signInResponse{
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
		Profile:   res.Profile,
	})
}

// HandleSignOut ends the current session, if any, and clears the cookie.
//
// HTTP: DELETE /api/sessions/current
// Auth: optional. Signing out without a session is a no-op, so this always
// answers 204 unless the session store fails.
func (h *AccountHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	if err := h.accounts.SignOut(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me
// Auth: optional. With no session, or no profile document, the answer is
// 204 No Content rather than an error.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	profile, err := h.accounts.CurrentProfile(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateProfile merges allow-listed fields into a profile.
//
// HTTP: PATCH /api/users/{id}
// REQUEST BODY: {"country":"Jordan","briefing":"..."}; any other key is a 400
// Auth: required. Users may edit themselves; admins may edit anyone.
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	id := r.PathValue("id")
	if id != sess.UserID {
		isAdmin, err := h.moderation.IsAdmin(r.Context(), sess.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !isAdmin {
			h.logger.Warn("profile edit refused",
				slog.String("user_id", sess.UserID),
				slog.String("target_id", id),
			)
			writeError(w, apperror.Forbidden("you can only edit your own profile"))
			return
		}
	}

	var update model.ProfileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.accounts.UpdateProfile(r.Context(), id, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
