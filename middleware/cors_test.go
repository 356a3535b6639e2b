package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsAllowedOrigin(t *testing.T) {
	allowedOrigins := []string{
		"https://example.com",
		"http://localhost:5173",
	}

	testCases := []struct {
		name     string
		origin   string
		expected bool
	}{
		{
			name:     "Allowed origin",
			origin:   "https://example.com",
			expected: true,
		},
		{
			name:     "Another allowed origin",
			origin:   "http://localhost:5173",
			expected: true,
		},
		{
			name:     "Disallowed origin",
			origin:   "https://evil.com",
			expected: false,
		},
		{
			name:     "Empty origin",
			origin:   "",
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := isAllowedOrigin(tc.origin, allowedOrigins)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v for origin %s", tc.expected, result, tc.origin)
			}
		})
	}
}

func TestCORSHandler(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	allowed := []string{"https://app.ledgerly.io", "http://localhost:5173"}

	testCases := []struct {
		name           string
		development    bool
		method         string
		origin         string
		expectedStatus int
		expectedOrigin string
	}{
		{
			name:           "Allowed origin is echoed",
			method:         "GET",
			origin:         "http://localhost:5173",
			expectedStatus: http.StatusTeapot,
			expectedOrigin: "http://localhost:5173",
		},
		{
			name:           "Preflight is answered without calling the handler",
			method:         "OPTIONS",
			origin:         "https://app.ledgerly.io",
			expectedStatus: http.StatusOK,
			expectedOrigin: "https://app.ledgerly.io",
		},
		{
			name:           "Unknown origin in production gets the first allowed origin",
			method:         "GET",
			origin:         "https://evil.com",
			expectedStatus: http.StatusTeapot,
			expectedOrigin: "https://app.ledgerly.io",
		},
		{
			name:           "Unknown origin in development is echoed",
			development:    true,
			method:         "GET",
			origin:         "http://192.168.1.4:5173",
			expectedStatus: http.StatusTeapot,
			expectedOrigin: "http://192.168.1.4:5173",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewCORS(allowed, tc.development, testLogger()).Handler(testHandler)

			req := httptest.NewRequest(tc.method, "/api/transactions", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tc.expectedStatus {
				t.Errorf("Expected status %d, got %d", tc.expectedStatus, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.expectedOrigin {
				t.Errorf("Expected origin %s, got %s", tc.expectedOrigin, got)
			}
			if rr.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Error("Expected Access-Control-Allow-Methods header to be set")
			}
			if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("Expected credentials to be allowed")
			}
		})
	}
}
