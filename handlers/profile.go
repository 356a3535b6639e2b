package handlers

import (
	"net/http"

	"ledgerly/backend/models"
)

type profileResponse struct {
	models.UserProfile
	Limits models.PlanLimits `json:"limits"`
}

// GetProfile returns the caller's profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	profile, err := h.profiles.Get(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	profile.Preferences = h.preferences.Defaults().Merge(profile.Preferences)
	writeJSON(w, http.StatusOK, profileResponse{UserProfile: profile, Limits: h.plans.LimitsFor(profile.Plan)})
}

// UpdateProfile changes the display name.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var update models.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := update.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	profile, err := h.profiles.UpdateProfile(r.Context(), uid, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{UserProfile: profile, Limits: h.plans.LimitsFor(profile.Plan)})
}

// GetPreferences returns the effective preferences of an account or guest.
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	session, err := h.activeSession(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs, err := h.preferences.Get(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences merges the posted fields over the stored preferences.
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	session, err := h.activeSession(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var update models.Preferences
	if err := decodeJSON(r, &update); err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs, err := h.preferences.Update(r.Context(), session, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// DeleteAccount removes every document of the caller, then the identity.
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.accounts.DeleteAccount(r.Context(), uid); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
