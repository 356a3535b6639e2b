package handlers

import (
	"net/http"

	"ledgerly/backend/models"
	"ledgerly/backend/services"

	"github.com/gorilla/mux"
)

// ListGoals returns the caller's goals.
func (h *Handlers) ListGoals(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	goals, err := h.goals.List(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if goals == nil {
		goals = []models.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

// GoalsOverview returns every goal with its derived progress and deadline state.
func (h *Handlers) GoalsOverview(w http.ResponseWriter, r *http.Request) {
	session, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	goals, err := h.goals.List(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Progress is derived from the caller's transactions
	source, err := h.sources.For(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	transactions, err := source.List(r.Context(), models.TransactionFilter{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.GoalsOverview(goals, transactions, h.now()))
}

// GetGoal returns one goal.
func (h *Handlers) GetGoal(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	goal, err := h.goals.Get(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// CreateGoal creates a goal.
func (h *Handlers) CreateGoal(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in models.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	goal, err := h.goals.Create(r.Context(), uid, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// UpdateGoal replaces the editable fields of a goal.
func (h *Handlers) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in models.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	goal, err := h.goals.Update(r.Context(), uid, mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// DeleteGoal removes a goal.
func (h *Handlers) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.goals.Delete(r.Context(), uid, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMoney contributes to a goal, optionally recording the offsetting expense.
func (h *Handlers) AddMoney(w http.ResponseWriter, r *http.Request) {
	_, uid, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req models.AddMoneyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	// Date the offsetting expense on the local calendar day, not the UTC one
	if req.OccurredOn.IsZero() {
		req.OccurredOn = models.DateOf(h.now())
	}
	goal, err := h.goals.AddMoney(r.Context(), uid, mux.Vars(r)["id"], req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
