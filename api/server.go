// Package api composes the HTTP router.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"ledgerly/backend/handlers"
	"ledgerly/backend/middleware"

	"github.com/gorilla/mux"
)

// Options configures a Server.
type Options struct {
	// StaticDir serves the built web UI when set.
	StaticDir string
}

// Server represents the API server
type Server struct {
	router   *mux.Router
	handlers *handlers.Handlers
	auth     *middleware.Authenticator
	cors     *middleware.CORS
	logger   *slog.Logger
}

// NewServer creates a new API server
func NewServer(h *handlers.Handlers, auth *middleware.Authenticator, cors *middleware.CORS, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: h,
		auth:     auth,
		cors:     cors,
		logger:   logger,
	}

	// Register routes with both direct paths and /api prefix to maintain compatibility
	s.registerRoutes(s.router.PathPrefix("/api").Subrouter())
	s.registerRoutes(s.router)

	// The web UI is registered last so API routes win
	if opts.StaticDir != "" {
		s.serveStatic(opts.StaticDir)
	}
	return s
}

// registerRoutes sets up all API routes on r.
func (s *Server) registerRoutes(r *mux.Router) {
	h := s.handlers

	// Public routes (no auth required)
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/billing/webhook", h.BillingWebhook).Methods("POST")

	// Guest mode can be entered without any session
	optional := r.PathPrefix("").Subrouter()
	optional.Use(s.auth.Optional)
	optional.HandleFunc("/guest/enable", h.EnableGuest).Methods("POST")

	// Routes served to both accounts and guests
	session := r.PathPrefix("").Subrouter()
	session.Use(s.auth.RequireSession)
	session.HandleFunc("/transactions", h.ListTransactions).Methods("GET")
	session.HandleFunc("/transactions", h.AddTransaction).Methods("POST")
	session.HandleFunc("/transactions/month/{year:[0-9]+}/{month:[0-9]+}", h.ListTransactionsByMonth).Methods("GET")
	session.HandleFunc("/transactions/{id}", h.GetTransaction).Methods("GET")
	session.HandleFunc("/transactions/{id}", h.UpdateTransaction).Methods("PUT")
	session.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")
	session.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	session.HandleFunc("/plan", h.Plan).Methods("GET")
	session.HandleFunc("/preferences", h.GetPreferences).Methods("GET")
	session.HandleFunc("/preferences", h.UpdatePreferences).Methods("PUT")
	session.HandleFunc("/guest", h.DisableGuest).Methods("DELETE")

	// Account-only routes
	account := r.PathPrefix("").Subrouter()
	account.Use(s.auth.RequireAuth)
	account.HandleFunc("/goals", h.ListGoals).Methods("GET")
	account.HandleFunc("/goals", h.CreateGoal).Methods("POST")
	account.HandleFunc("/goals/overview", h.GoalsOverview).Methods("GET")
	account.HandleFunc("/goals/{id}", h.GetGoal).Methods("GET")
	account.HandleFunc("/goals/{id}", h.UpdateGoal).Methods("PUT")
	account.HandleFunc("/goals/{id}", h.DeleteGoal).Methods("DELETE")
	account.HandleFunc("/goals/{id}/add-money", h.AddMoney).Methods("POST")
	account.HandleFunc("/profile", h.GetProfile).Methods("GET")
	account.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
	account.HandleFunc("/profile/preferences", h.UpdatePreferences).Methods("PUT")
	account.HandleFunc("/account", h.DeleteAccount).Methods("DELETE")
	account.HandleFunc("/billing/checkout", h.CreateCheckout).Methods("POST")
	account.HandleFunc("/reports/monthly.csv", h.MonthlyReportCSV).Methods("GET")
	account.HandleFunc("/guest/migrate", h.MigrateGuest).Methods("POST")
}

// serveStatic serves the web UI from dir and falls back to index.html for client routes.
func (s *Server) serveStatic(dir string) {
	fs := http.FileServer(http.Dir(dir))
	s.router.PathPrefix("/assets/").Handler(fs)
	s.router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown API paths stay 404 instead of returning the app shell
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		// Serve real files directly
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fs.ServeHTTP(w, r)
			return
		}
		// Everything else is a client-side route
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	}).Methods("GET")
}

// Handler returns the HTTP handler for the API server. CORS wraps the router so
// preflight requests are answered for every path.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(middleware.RequestLogger(s.logger)(s.router))
}
