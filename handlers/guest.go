package handlers

import (
	"fmt"
	"net/http"

	"ledgerly/backend/common"
	"ledgerly/backend/services"

	"github.com/google/uuid"
)

type guestResponse struct {
	Enabled  bool `json:"enabled"`
	Capacity int  `json:"capacity"`
	Count    int  `json:"count"`
}

// EnableGuest starts guest mode. A caller that already holds a guest cookie keeps
// its session; otherwise a new one is issued.
func (h *Handlers) EnableGuest(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Signed-in users never enter guest mode
	if session.IsAuthenticated() {
		h.writeError(w, r, fmt.Errorf("%w: already signed in", common.ErrForbidden))
		return
	}

	// Reuse the existing guest session or issue a new cookie
	sessionID := session.GuestSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		if err := h.cookies.IssueGuestCookie(w, sessionID); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	// Turn the flag on so the session can use guest storage
	store := h.sources.Guest(sessionID)
	if err := store.Enable(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	count, err := store.Count(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("Guest mode enabled", "guest_session", sessionID)
	writeJSON(w, http.StatusOK, guestResponse{Enabled: true, Capacity: store.Capacity(), Count: count})
}

// DisableGuest clears all guest state and the cookie.
func (h *Handlers) DisableGuest(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if session.GuestSessionID == "" {
		h.writeError(w, r, common.ErrUnauthorized)
		return
	}
	// Drop the flag and every stored guest value
	if err := h.sources.Guest(session.GuestSessionID).Disable(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cookies.ClearGuestCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// MigrateGuest moves the guest transactions into the signed-in account. The cookie is
// cleared once nothing is left behind.
func (h *Handlers) MigrateGuest(w http.ResponseWriter, r *http.Request) {
	session, _, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if session.GuestSessionID == "" {
		h.writeError(w, r, fmt.Errorf("%w: no guest session", common.ErrNotFound))
		return
	}

	target, err := h.sources.For(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Replay the guest list into the account
	guest := h.sources.Guest(session.GuestSessionID)
	result, err := services.MigrateGuest(r.Context(), guest, target, h.migrationPolicy, h.logger)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Keep the cookie while anything is still retained
	if result.Migrated > 0 && result.Retained == 0 {
		h.cookies.ClearGuestCookie(w)
	}
	writeJSON(w, http.StatusOK, result)
}
