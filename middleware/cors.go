package middleware

import (
	"log/slog"
	"net/http"
)

// CORS handles cross-origin headers for a fixed list of allowed origins. In
// development any origin is echoed back.
type CORS struct {
	allowedOrigins []string
	development    bool
	logger         *slog.Logger
}

// NewCORS builds the CORS middleware.
func NewCORS(allowedOrigins []string, development bool, logger *slog.Logger) *CORS {
	return &CORS{allowedOrigins: allowedOrigins, development: development, logger: logger}
}

// Handler wraps next with CORS headers and answers preflight requests.
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get the origin from the request
		origin := r.Header.Get("Origin")

		// Echo allowed origins, fall back to the first configured one
		switch {
		case isAllowedOrigin(origin, c.allowedOrigins):
			w.Header().Set("Access-Control-Allow-Origin", origin)
		case c.development && origin != "":
			c.logger.Debug("Development mode: allowing origin", "origin", origin)
			w.Header().Set("Access-Control-Allow-Origin", origin)
		case len(c.allowedOrigins) > 0:
			w.Header().Set("Access-Control-Allow-Origin", c.allowedOrigins[0])
		}
		w.Header().Add("Vary", "Origin")

		// Set the remaining CORS headers
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Authorization, Stripe-Signature, X-Requested-With, Accept, Origin, Access-Control-Request-Method, Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "3600") // Cache preflight request results

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isAllowedOrigin checks if the provided origin is in the allowed list
func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}
