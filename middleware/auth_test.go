package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledgerly/backend/models"
	"ledgerly/backend/security"
	"ledgerly/backend/services"

	"firebase.google.com/go/v4/auth"
)

type stubVerifier struct {
	tokens map[string]*auth.Token
}

func (v *stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if token, ok := v.tokens[idToken]; ok {
		return token, nil
	}
	return nil, errors.New("token expired")
}

type stubProfiles struct {
	plans   map[string]models.Plan
	ensured []string
	err     error
}

func (p *stubProfiles) Ensure(ctx context.Context, uid, name, email string) (models.UserProfile, error) {
	if p.err != nil {
		return models.UserProfile{}, p.err
	}
	p.ensured = append(p.ensured, uid)
	plan := p.plans[uid]
	if plan == "" {
		plan = models.PlanFree
	}
	return models.UserProfile{ID: uid, Name: name, Email: email, Plan: plan}, nil
}

func newTestAuthenticator(t *testing.T, verifier TokenVerifier, profiles ProfileEnsurer, opts AuthOptions) *Authenticator {
	t.Helper()
	cipher, err := security.NewRandomCipher()
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}
	return NewAuthenticator(verifier, profiles, cipher, opts, testLogger())
}

// captureSession returns a handler that records the session it was called with.
func captureSession(got *services.Session, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		session, ok := SessionFromContext(r.Context())
		if ok {
			*got = session
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractToken(t *testing.T) {
	testCases := []struct {
		name          string
		authHeader    string
		expectedToken string
	}{
		{
			name:          "Valid Bearer token",
			authHeader:    "Bearer test-token-123",
			expectedToken: "test-token-123",
		},
		{
			name:          "Missing Bearer prefix",
			authHeader:    "test-token-123",
			expectedToken: "",
		},
		{
			name:          "Empty auth header",
			authHeader:    "",
			expectedToken: "",
		},
		{
			name:          "Bearer with no token",
			authHeader:    "Bearer ",
			expectedToken: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			token := extractToken(tc.authHeader)
			if token != tc.expectedToken {
				t.Errorf("Expected token '%s', got '%s'", tc.expectedToken, token)
			}
		})
	}
}

func TestRequireAuth_VerifiedToken(t *testing.T) {
	verifier := &stubVerifier{tokens: map[string]*auth.Token{
		"good": {UID: "user-1", Claims: map[string]interface{}{"email": "ana@example.com", "name": "Ana"}},
	}}
	profiles := &stubProfiles{plans: map[string]models.Plan{"user-1": models.PlanPremium}}
	a := newTestAuthenticator(t, verifier, profiles, AuthOptions{})

	var got services.Session
	var called bool
	req := httptest.NewRequest("GET", "/api/transactions", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	a.RequireAuth(captureSession(&got, &called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !got.IsAuthenticated() || got.Identity.UID != "user-1" {
		t.Fatalf("Expected authenticated session for user-1, got %+v", got)
	}
	if got.Identity.Email != "ana@example.com" || got.Identity.Name != "Ana" {
		t.Errorf("Expected claims to be copied, got %+v", got.Identity)
	}
	if got.Plan != models.PlanPremium {
		t.Errorf("Expected premium plan, got %s", got.Plan)
	}
	if len(profiles.ensured) != 1 {
		t.Errorf("Expected profile to be ensured once, got %d", len(profiles.ensured))
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	a := newTestAuthenticator(t, &stubVerifier{}, &stubProfiles{}, AuthOptions{})

	var got services.Session
	var called bool
	req := httptest.NewRequest("GET", "/api/transactions", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr := httptest.NewRecorder()
	a.RequireAuth(captureSession(&got, &called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if called {
		t.Error("Handler should not be called with an invalid token")
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	a := newTestAuthenticator(t, &stubVerifier{}, &stubProfiles{}, AuthOptions{})

	var got services.Session
	var called bool
	req := httptest.NewRequest("GET", "/api/profile", nil)
	rr := httptest.NewRecorder()
	a.RequireAuth(captureSession(&got, &called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status code %v, got %v", http.StatusUnauthorized, rr.Code)
	}
	if called {
		t.Error("Handler should not be called when auth header is missing")
	}
}

func TestRequireAuth_ProfileFailure(t *testing.T) {
	verifier := &stubVerifier{tokens: map[string]*auth.Token{"good": {UID: "user-1"}}}
	a := newTestAuthenticator(t, verifier, &stubProfiles{err: errors.New("firestore unavailable")}, AuthOptions{})

	var got services.Session
	var called bool
	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	a.RequireAuth(captureSession(&got, &called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}

func TestDevBypass(t *testing.T) {
	a := newTestAuthenticator(t, nil, &stubProfiles{}, AuthOptions{DevBypass: true})

	testCases := []struct {
		name        string
		token       string
		expectedUID string
	}{
		{name: "Any token maps to the dev user", token: "anything", expectedUID: DevUserID},
		{name: "Prefixed token selects the uid", token: "dev:alice", expectedUID: "alice"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got services.Session
			var called bool
			req := httptest.NewRequest("GET", "/api/dashboard", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rr := httptest.NewRecorder()
			a.RequireAuth(captureSession(&got, &called)).ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
			}
			if got.OwnerID() != tc.expectedUID {
				t.Errorf("Expected uid %s, got %s", tc.expectedUID, got.OwnerID())
			}
		})
	}
}

func TestNoVerifierWithoutBypassRejects(t *testing.T) {
	a := newTestAuthenticator(t, nil, &stubProfiles{}, AuthOptions{})

	var got services.Session
	var called bool
	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	a.RequireSession(captureSession(&got, &called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestGuestCookieRoundTrip(t *testing.T) {
	a := newTestAuthenticator(t, nil, &stubProfiles{}, AuthOptions{})

	issue := httptest.NewRecorder()
	if err := a.IssueGuestCookie(issue, "session-42"); err != nil {
		t.Fatalf("IssueGuestCookie failed: %v", err)
	}
	cookies := issue.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != GuestCookieName {
		t.Fatalf("Expected one guest cookie, got %v", cookies)
	}
	if cookies[0].Value == "session-42" {
		t.Error("Guest session id should not be stored in clear text")
	}

	var got services.Session
	var called bool
	req := httptest.NewRequest("GET", "/api/transactions", nil)
	req.AddCookie(cookies[0])
	rr := httptest.NewRecorder()
	a.RequireSession(captureSession(&got, &called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !got.IsGuest() || got.GuestSessionID != "session-42" {
		t.Errorf("Expected guest session-42, got %+v", got)
	}
	if got.OwnerID() != models.GuestOwnerID {
		t.Errorf("Expected guest owner id, got %s", got.OwnerID())
	}
}

func TestTamperedGuestCookieIsIgnored(t *testing.T) {
	a := newTestAuthenticator(t, nil, &stubProfiles{}, AuthOptions{})

	var got services.Session
	var called bool
	req := httptest.NewRequest("GET", "/api/transactions", nil)
	req.AddCookie(&http.Cookie{Name: GuestCookieName, Value: "not-a-sealed-value"})
	rr := httptest.NewRecorder()
	a.RequireSession(captureSession(&got, &called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestOptionalAttachesEmptySession(t *testing.T) {
	a := newTestAuthenticator(t, nil, &stubProfiles{}, AuthOptions{})

	got := services.Session{GuestSessionID: "stale"}
	var called bool
	req := httptest.NewRequest("POST", "/api/guest", nil)
	rr := httptest.NewRecorder()
	a.Optional(captureSession(&got, &called)).ServeHTTP(rr, req)

	if !called {
		t.Fatal("Optional should always call the handler")
	}
	if got.IsAuthenticated() || got.GuestSessionID != "" {
		t.Errorf("Expected empty session, got %+v", got)
	}
}

func TestOptionsRequestSkipsAuth(t *testing.T) {
	a := newTestAuthenticator(t, &stubVerifier{}, &stubProfiles{}, AuthOptions{})

	var got services.Session
	var called bool
	req := httptest.NewRequest("OPTIONS", "/api/transactions", nil)
	rr := httptest.NewRecorder()
	a.RequireAuth(captureSession(&got, &called)).ServeHTTP(rr, req)

	if !called || rr.Code != http.StatusOK {
		t.Errorf("Expected OPTIONS to pass through, got status %d", rr.Code)
	}
}

func TestClearGuestCookie(t *testing.T) {
	a := newTestAuthenticator(t, nil, &stubProfiles{}, AuthOptions{SecureCookies: true})

	rr := httptest.NewRecorder()
	a.ClearGuestCookie(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Expected one cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("Expected an expired cookie, got MaxAge %d", cookies[0].MaxAge)
	}
	if !cookies[0].Secure {
		t.Error("Expected Secure flag")
	}
}
