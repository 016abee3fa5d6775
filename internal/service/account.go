// Package service is the account and feed gateway.
//
// Each service sits between the HTTP handlers and the storage/broker adapters:
//
//	AccountHandler (HTTP) → AccountService (business rules) → Credential/Session/ProfileRepository
//	                      ↘ TokenService (JWT), PasswordService (bcrypt)
//
// The services hold no per-user state. The signed-in identity is a
// *model.Session passed into every call that needs one, which keeps the
// services safe for concurrent use and testable with in-memory fakes.
//
// ERRORS:
// Every failure is returned as an *apperror.AppError wrapping one of the
// sentinels (ErrAuthCreation, ErrAuthSignIn, ErrUnapprovedOrganization,
// ErrDocumentRead, ErrDocumentWrite, ...). Nothing is retried here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/auth"
	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/repository"
)

// DefaultSessionTTL is used when NewAccountService gets a non-positive TTL.
const DefaultSessionTTL = 24 * time.Hour

// compile-time check that the middleware can resolve tokens through us
var _ auth.SessionResolver = (*AccountService)(nil)

// AccountService handles registration, sign-in/out and profile edits.
//
// DEPENDENCIES (injected via NewAccountService):
//   - credentials  repository.CredentialRepository → email + bcrypt hash
//   - sessions     repository.SessionRepository    → live sessions (sign-out deletes)
//   - profiles     repository.ProfileRepository    → profile documents
//   - tokens       *auth.TokenService               → sign/verify JWTs
//   - passwords    *auth.PasswordService            → bcrypt hashing
type AccountService struct {
	credentials repository.CredentialRepository
	sessions    repository.SessionRepository
	profiles    repository.ProfileRepository
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	sessionTTL  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewAccountService creates an AccountService with all required dependencies.
func NewAccountService(
	credentials repository.CredentialRepository,
	sessions repository.SessionRepository,
	profiles repository.ProfileRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *AccountService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AccountService{
		credentials: credentials,
		sessions:    sessions,
		profiles:    profiles,
		tokens:      tokens,
		passwords:   passwords,
		sessionTTL:  sessionTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// SignInResult bundles the new session (with its signed token) and the
// profile, so the handler can set the cookie and respond in one step.
type SignInResult struct {
	Session *model.Session
	Profile *model.Profile
}

// CreateAccount registers a credential, then writes the profile document
// keyed by the credential's ID.
//
// The two writes are not a transaction. If the profile write fails the
// credential stays behind with no profile; that is logged at error level
// and reported as ErrDocumentWrite. A later sign-in repairs it with the
// fallback profile.
func (s *AccountService) CreateAccount(ctx context.Context, email, password string, signup model.Signup) (*model.Profile, error) {
	if signup == nil {
		return nil, apperror.ValidationFailed("accountType", "account type must be local or organization")
	}
	if signup.DisplayName() == "" {
		field := "name"
		if signup.AccountType() == model.AccountOrganization {
			field = "orgName"
		}
		return nil, apperror.ValidationFailed(field, field+" is required")
	}

	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, apperror.AuthCreationFailed("email", "email address is invalid", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, apperror.AuthCreationFailed("password",
				fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength), err)
		case errors.Is(err, auth.ErrPasswordTooLong):
			return nil, apperror.AuthCreationFailed("password",
				fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordLength), err)
		}
		return nil, apperror.AuthCreationFailed("password", "could not hash password", err)
	}

	cred := &model.Credential{Email: addr, PasswordHash: hash, CreatedAt: s.now()}
	if err := s.credentials.Create(ctx, cred); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.AuthCreationFailed("email", "email address is already registered", err)
		}
		s.logger.Error("failed to create credential",
			slog.String("email", addr),
			slog.String("error", err.Error()),
		)
		return nil, apperror.AuthCreationFailed("", "could not create account", err)
	}

	profile := signup.NewProfile(cred.ID, cred.Email, cred.CreatedAt)
	if err := s.profiles.Put(ctx, profile); err != nil {
		s.logger.Error("credential created without profile",
			slog.String("user_id", cred.ID),
			slog.String("email", addr),
			slog.String("error", err.Error()),
		)
		return nil, apperror.DocumentWriteFailed("profile", cred.ID, err)
	}

	s.logger.Info("account created",
		slog.String("user_id", profile.ID),
		slog.String("account_type", string(profile.AccountType)),
	)
	return profile, nil
}

// SignIn verifies the password, opens a session and loads the profile.
//
// Two outcomes beyond plain success:
//   - no profile document: a minimal local profile (name = email, approved)
//     is written and returned instead of failing;
//   - organization not approved: the session just opened is revoked and
//     ErrUnapprovedOrganization is returned, so no live session remains.
//
// Unknown email and wrong password produce the same ErrAuthSignIn.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	addr := strings.ToLower(strings.TrimSpace(email))

	cred, err := s.credentials.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.AuthSignInFailed(nil)
		}
		return nil, apperror.AuthSignInFailed(err)
	}

	if err := s.passwords.Verify(cred.PasswordHash, password); err != nil {
		s.logger.Debug("sign-in rejected", slog.String("user_id", cred.ID))
		return nil, apperror.AuthSignInFailed(err)
	}

	sess, err := s.openSession(ctx, cred.ID)
	if err != nil {
		return nil, apperror.AuthSignInFailed(err)
	}

	profile, err := s.loadOrRepairProfile(ctx, cred)
	if err != nil {
		s.revoke(ctx, sess)
		return nil, err
	}

	if profile.AccountType == model.AccountOrganization && !profile.IsApproved() {
		s.revoke(ctx, sess)
		s.logger.Info("unapproved organization sign-in refused", slog.String("user_id", profile.ID))
		return nil, apperror.UnapprovedOrganization()
	}

	s.logger.Info("signed in", slog.String("user_id", profile.ID), slog.String("session_id", sess.ID))
	return &SignInResult{Session: sess, Profile: profile}, nil
}

// SignOut ends the session. A nil session, or one already signed out, is
// not an error.
func (s *AccountService) SignOut(ctx context.Context, sess *model.Session) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return apperror.DocumentWriteFailed("session", sess.ID, err)
	}
	s.logger.Info("signed out", slog.String("user_id", sess.UserID), slog.String("session_id", sess.ID))
	return nil
}

// CurrentProfile returns the profile for sess. It returns nil, nil when there
// is no session or the profile document does not exist.
func (s *AccountService) CurrentProfile(ctx context.Context, sess *model.Session) (*model.Profile, error) {
	if sess == nil {
		return nil, nil
	}
	profile, err := s.profiles.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, apperror.DocumentReadFailed("profile", err)
	}
	return profile, nil
}

// ResolveSession turns a token into a live session: the signature and expiry
// are checked first, then the session row must still exist.
func (s *AccountService) ResolveSession(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized("invalid session token")
	}

	sess, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("session has been signed out")
		}
		return nil, apperror.DocumentReadFailed("session", err)
	}

	if sess.UserID != claims.UserID {
		return nil, apperror.Unauthorized("session does not belong to token subject")
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, apperror.Unauthorized("session has expired")
	}

	sess.Token = token
	return sess, nil
}

// UpdateProfile merges the allow-listed fields in update into the profile.
//
// No ownership or admin check happens here; the HTTP layer decides who may
// edit whom. Setting name on an organization or orgName on a local account
// is rejected, as is blanking the display name.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	if update.Empty() {
		return nil, apperror.ValidationFailed("", "update contains no editable fields")
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, apperror.DocumentReadFailed("profile", err)
	}

	switch {
	case profile.AccountType == model.AccountOrganization && update.Name != nil:
		return nil, apperror.ValidationFailed("name", "organizations have an orgName, not a name")
	case profile.AccountType != model.AccountOrganization && update.OrgName != nil:
		return nil, apperror.ValidationFailed("orgName", "local accounts have a name, not an orgName")
	}

	update.ApplyTo(profile)
	if profile.DisplayName() == "" {
		return nil, apperror.ValidationFailed("name", "name cannot be blank")
	}

	if err := s.profiles.UpdateDetails(ctx, profile); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, apperror.DocumentWriteFailed("profile", userID, err)
	}

	s.logger.Info("profile updated", slog.String("user_id", userID))
	return profile, nil
}

// openSession stores a new session row and signs its token. Expired rows
// are reclaimed first; a failure there is logged and does not block sign-in.
func (s *AccountService) openSession(ctx context.Context, userID string) (*model.Session, error) {
	now := s.now().UTC()
	s.purgeExpiredSessions(ctx, now)

	sess := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	token, err := s.tokens.Generate(sess.UserID, sess.ID, sess.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	sess.Token = token
	return sess, nil
}

func (s *AccountService) purgeExpiredSessions(ctx context.Context, now time.Time) {
	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Warn("purging expired sessions failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Debug("purged expired sessions", slog.Int64("count", n))
	}
}

// loadOrRepairProfile reads the profile for cred, writing the fallback
// profile when the document is missing.
func (s *AccountService) loadOrRepairProfile(ctx context.Context, cred *model.Credential) (*model.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, cred.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.DocumentReadFailed("profile", err)
	}

	profile = model.FallbackProfile(cred.ID, cred.Email, s.now().UTC())
	if err := s.profiles.Put(ctx, profile); err != nil {
		return nil, apperror.DocumentWriteFailed("profile", cred.ID, err)
	}

	s.logger.Warn("missing profile replaced with fallback", slog.String("user_id", cred.ID))
	return profile, nil
}

// revoke deletes a session we are about to abandon. Failures are logged
// only; the caller is already returning a more relevant error.
func (s *AccountService) revoke(ctx context.Context, sess *model.Session) {
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		s.logger.Error("failed to revoke session",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}
}

// normalizeEmail accepts a bare address ("a@b.c", no display name) and
// returns it lower-cased.
func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", err
	}
	if addr.Address != email {
		return "", fmt.Errorf("%q is not a bare address", email)
	}
	return strings.ToLower(addr.Address), nil
}
