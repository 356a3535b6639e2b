package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ledgerly/backend/models"
	"ledgerly/backend/security"
	"ledgerly/backend/services"

	"firebase.google.com/go/v4/auth"
)

type contextKey string

const sessionKey contextKey = "session"

// GuestCookieName is the cookie that carries the sealed guest session id.
const GuestCookieName = "ledgerly_guest"

const guestPurpose = "guest-session"

// DevUserID is the identity used when token verification is disabled in development.
const DevUserID = "dev-user"

// TokenVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// ProfileEnsurer loads or creates the profile behind a verified identity.
type ProfileEnsurer interface {
	Ensure(ctx context.Context, uid, name, email string) (models.UserProfile, error)
}

// Authenticator resolves the caller of each request into a services.Session.
type Authenticator struct {
	verifier  TokenVerifier
	profiles  ProfileEnsurer
	cipher    *security.Cipher
	devBypass bool
	secure    bool
	logger    *slog.Logger
}

// AuthOptions configures an Authenticator.
type AuthOptions struct {
	// DevBypass accepts any bearer token without verification when no verifier is set.
	DevBypass bool
	// SecureCookies marks the guest cookie Secure.
	SecureCookies bool
}

// NewAuthenticator builds an Authenticator. verifier may be nil in development.
func NewAuthenticator(verifier TokenVerifier, profiles ProfileEnsurer, cipher *security.Cipher, opts AuthOptions, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		verifier:  verifier,
		profiles:  profiles,
		cipher:    cipher,
		devBypass: opts.DevBypass,
		secure:    opts.SecureCookies,
		logger:    logger,
	}
}

var errInvalidToken = errors.New("invalid token")

// resolve builds the session for r. A request with neither a token nor a guest cookie
// yields an empty session and no error.
func (a *Authenticator) resolve(r *http.Request) (services.Session, error) {
	var session services.Session

	if token := extractToken(r.Header.Get("Authorization")); token != "" {
		identity, err := a.verify(r.Context(), token)
		if err != nil {
			return session, err
		}
		profile, err := a.profiles.Ensure(r.Context(), identity.UID, identity.Name, identity.Email)
		if err != nil {
			return session, fmt.Errorf("failed to load profile: %w", err)
		}
		session.Identity = identity
		session.Plan = profile.Plan
	}

	if cookie, err := r.Cookie(GuestCookieName); err == nil && cookie.Value != "" {
		id, err := a.cipher.Open(guestPurpose, cookie.Value)
		if err != nil {
			a.logger.Warn("Ignoring invalid guest cookie", "error", err)
		} else {
			session.GuestSessionID = id
		}
	}

	return session, nil
}

func (a *Authenticator) verify(ctx context.Context, token string) (*services.Identity, error) {
	if a.verifier == nil {
		if !a.devBypass {
			return nil, errInvalidToken
		}
		uid := DevUserID
		if rest, ok := strings.CutPrefix(token, "dev:"); ok && rest != "" {
			uid = rest
		}
		return &services.Identity{UID: uid, Email: uid + "@localhost", Name: uid}, nil
	}

	verified, err := a.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	identity := &services.Identity{UID: verified.UID}
	if email, ok := verified.Claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := verified.Claims["name"].(string); ok {
		identity.Name = name
	}
	return identity, nil
}

func (a *Authenticator) handle(next http.Handler, allow func(services.Session) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for OPTIONS requests (CORS preflight)
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		session, err := a.resolve(r)
		if err != nil {
			if errors.Is(err, errInvalidToken) {
				a.logger.Info("Rejected token", "path", r.URL.Path, "error", err)
				http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
				return
			}
			a.logger.Error("Failed to resolve session", "path", r.URL.Path, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !allow(session) {
			http.Error(w, "Unauthorized: No session", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// RequireSession admits authenticated users and guests.
func (a *Authenticator) RequireSession(next http.Handler) http.Handler {
	return a.handle(next, func(s services.Session) bool {
		return s.IsAuthenticated() || s.GuestSessionID != ""
	})
}

// RequireAuth admits authenticated users only.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return a.handle(next, func(s services.Session) bool {
		return s.IsAuthenticated()
	})
}

// Optional attaches whatever session the request carries and never rejects.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return a.handle(next, func(services.Session) bool { return true })
}

// IssueGuestCookie seals sessionID into the guest cookie.
func (a *Authenticator) IssueGuestCookie(w http.ResponseWriter, sessionID string) error {
	value, err := a.cipher.Seal(guestPurpose, sessionID)
	if err != nil {
		return fmt.Errorf("failed to seal guest session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearGuestCookie expires the guest cookie.
func (a *Authenticator) ClearGuestCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// extractToken gets the token from the Authorization header
func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, "Bearer ")
	if len(parts) != 2 {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// WithSession stores session on ctx.
func WithSession(ctx context.Context, session services.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext retrieves the session attached by the Authenticator.
func SessionFromContext(ctx context.Context) (services.Session, bool) {
	session, ok := ctx.Value(sessionKey).(services.Session)
	return session, ok
}
