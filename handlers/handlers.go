// Package handlers holds the HTTP handlers. Every handler reads the caller from the
// session attached by the auth middleware and never branches on guest or account
// storage itself.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/middleware"
	"ledgerly/backend/models"
	"ledgerly/backend/services"
)

// GuestCookies issues and clears the guest session cookie.
type GuestCookies interface {
	IssueGuestCookie(w http.ResponseWriter, sessionID string) error
	ClearGuestCookie(w http.ResponseWriter)
}

// Options holds the dependencies of Handlers.
type Options struct {
	Sources         *services.Sources
	Goals           services.GoalRepository
	Profiles        services.ProfileRepository
	Preferences     *services.PreferencesService
	Billing         *services.BillingService
	Accounts        *services.AccountService
	Plans           *services.Plans
	Cookies         GuestCookies
	MigrationPolicy services.MigrationPolicy
	Version         string
	Now             func() time.Time
	Logger          *slog.Logger
}

// Handlers serves the JSON API.
type Handlers struct {
	sources         *services.Sources
	goals           services.GoalRepository
	profiles        services.ProfileRepository
	preferences     *services.PreferencesService
	billing         *services.BillingService
	accounts        *services.AccountService
	plans           *services.Plans
	cookies         GuestCookies
	migrationPolicy services.MigrationPolicy
	version         string
	now             func() time.Time
	logger          *slog.Logger
}

// New builds Handlers from opts.
func New(opts Options) *Handlers {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Plans == nil {
		opts.Plans = services.DefaultPlans
	}
	if opts.MigrationPolicy == "" {
		opts.MigrationPolicy = services.MigrationClearAll
	}
	return &Handlers{
		sources:         opts.Sources,
		goals:           opts.Goals,
		profiles:        opts.Profiles,
		preferences:     opts.Preferences,
		billing:         opts.Billing,
		accounts:        opts.Accounts,
		plans:           opts.Plans,
		cookies:         opts.Cookies,
		migrationPolicy: opts.MigrationPolicy,
		version:         opts.Version,
		now:             opts.Now,
		logger:          opts.Logger,
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type capacityBody struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Error   string `json:"error"`
}

// writeError maps err onto a status code and a JSON body.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *models.ValidationError
	var capacity *models.CapacityError
	var userErr *common.UserError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Error(), Field: validation.Field})
	case errors.As(err, &capacity):
		writeJSON(w, http.StatusForbidden, capacityBody{
			Allowed: false,
			Reason:  capacity.Decision.Reason,
			Error:   capacity.Kind.Error(),
		})
	case errors.As(err, &userErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: userErr.UserMessage})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, common.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, common.ErrGuestOnly), errors.Is(err, common.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, common.ErrMissingConfig):
		h.logger.Error("Feature not configured", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "not configured"})
	default:
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v. A malformed body is a user error.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.NewUserError("Invalid request body", err)
	}
	return nil
}

func (h *Handlers) session(r *http.Request) (services.Session, error) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return services.Session{}, common.ErrUnauthorized
	}
	return session, nil
}

// activeSession is session for callers whose guest mode, if any, is still on.
func (h *Handlers) activeSession(r *http.Request) (services.Session, error) {
	session, err := h.session(r)
	if err != nil {
		return session, err
	}
	if session.IsGuest() {
		if _, err := h.sources.ActiveGuest(r.Context(), session.GuestSessionID); err != nil {
			return session, err
		}
	}
	return session, nil
}

// account returns the authenticated uid. Guests get ErrGuestOnly.
func (h *Handlers) account(r *http.Request) (services.Session, string, error) {
	session, err := h.session(r)
	if err != nil {
		return session, "", err
	}
	if !session.IsAuthenticated() {
		if session.IsGuest() {
			return session, "", common.ErrGuestOnly
		}
		return session, "", common.ErrUnauthorized
	}
	return session, session.Identity.UID, nil
}

// plan is the effective plan of session. Guests get the free plan.
func plan(session services.Session) models.Plan {
	if session.IsAuthenticated() && session.Plan.Valid() {
		return session.Plan
	}
	return models.PlanFree
}
