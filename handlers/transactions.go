package handlers

import (
	"net/http"
	"strconv"
	"time"

	"ledgerly/backend/common"
	"ledgerly/backend/models"
	"ledgerly/backend/services"

	"github.com/gorilla/mux"
)

func (h *Handlers) source(r *http.Request) (services.TransactionSource, error) {
	session, err := h.session(r)
	if err != nil {
		return nil, err
	}
	return h.sources.For(r.Context(), session)
}

// ListTransactions returns the caller's transactions, newest first. Optional query
// parameters: kind, category, from, to (YYYY-MM-DD).
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	// Parse the filter before touching storage
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	source, err := h.source(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	transactions, err := source.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Always return an array, never null
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

func parseFilter(r *http.Request) (models.TransactionFilter, error) {
	q := r.URL.Query()
	filter := models.TransactionFilter{
		Kind:     models.Kind(q.Get("kind")),
		Category: models.Category(q.Get("category")),
	}
	if from := q.Get("from"); from != "" {
		d, err := models.ParseDate(from)
		if err != nil {
			return filter, common.NewUserError("Invalid from date", err)
		}
		filter.From = d
	}
	if to := q.Get("to"); to != "" {
		d, err := models.ParseDate(to)
		if err != nil {
			return filter, common.NewUserError("Invalid to date", err)
		}
		filter.To = d
	}
	return filter, nil
}

// ListTransactionsByMonth returns the transactions of /transactions/month/{year}/{month}.
func (h *Handlers) ListTransactionsByMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(mux.Vars(r)["year"], mux.Vars(r)["month"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	source, err := h.source(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	transactions, err := source.ListByMonth(r.Context(), year, month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

func yearMonth(y, m string) (int, time.Month, error) {
	year, err := strconv.Atoi(y)
	if err != nil || year < 1970 || year > 9999 {
		return 0, 0, common.NewUserError("Invalid year", err)
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, common.NewUserError("Invalid month", err)
	}
	return year, time.Month(month), nil
}

// GetTransaction returns one transaction.
func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	source, err := h.source(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := source.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// AddTransaction creates a transaction. A full guest store or an exhausted plan
// answers 403 with the decision reason.
func (h *Handlers) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var in models.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	// Pick the guest store or the account repository for this caller
	source, err := h.source(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Capacity and plan checks happen inside the source
	t, err := source.Add(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTransaction replaces the editable fields of a transaction.
func (h *Handlers) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in models.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	source, err := h.source(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := source.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTransaction removes a transaction.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	source, err := h.source(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := source.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
