package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"ledgerly/backend/common"
	"ledgerly/backend/models"
	"ledgerly/backend/services"
)

// Dashboard returns the aggregated view for the caller's plan.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	source, err := h.sources.For(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dashboard, err := services.DashboardFor(r.Context(), source, h.plans, plan(session), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

type planResponse struct {
	Plan           models.Plan       `json:"plan"`
	Guest          bool              `json:"guest"`
	Limits         models.PlanLimits `json:"limits"`
	LockedFeatures []models.Feature  `json:"lockedFeatures"`
	CanAdd         models.Decision   `json:"canAdd"`
}

// Plan returns the caller's plan, its limits and whether another transaction fits.
func (h *Handlers) Plan(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	source, err := h.sources.For(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Report whether one more transaction would be accepted
	decision, err := source.CanAdd(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p := plan(session)
	writeJSON(w, http.StatusOK, planResponse{
		Plan:           p,
		Guest:          session.IsGuest(),
		Limits:         h.plans.LimitsFor(p),
		LockedFeatures: h.plans.LockedFeatures(p),
		CanAdd:         decision,
	})
}

// MonthlyReportCSV streams /reports/monthly.csv?year=&month= as a download. Defaults
// to the current month.
func (h *Handlers) MonthlyReportCSV(w http.ResponseWriter, r *http.Request) {
	session, _, err := h.account(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Export is gated by plan
	if !h.plans.IsFeatureAvailable(plan(session), models.FeatureExport) {
		h.writeError(w, r, fmt.Errorf("%w: export is a premium feature", common.ErrForbidden))
		return
	}

	now := h.now()
	y, m := r.URL.Query().Get("year"), r.URL.Query().Get("month")
	if y == "" {
		y = strconv.Itoa(now.Year())
	}
	if m == "" {
		m = strconv.Itoa(int(now.Month()))
	}
	year, month, err := yearMonth(y, m)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	source, err := h.sources.For(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	transactions, err := source.ListByMonth(r.Context(), year, month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs, err := h.preferences.Get(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report := services.BuildMonthlyReport(transactions, year, month, prefs)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename()))
	if err := report.WriteCSV(w); err != nil {
		h.logger.Error("Failed to write monthly report", "error", err)
	}
}
