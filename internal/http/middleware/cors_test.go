package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(allowed []string, req *http.Request) (*httptest.ResponseRecorder, bool) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	CORS(allowed)(next).ServeHTTP(rec, req)
	return rec, called
}

func TestCORSSimpleRequests(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{name: "listed origin", allowed: []string{"https://book.example.com/"}, origin: "https://book.example.com", want: "https://book.example.com"},
		{name: "unknown origin", allowed: []string{"https://book.example.com"}, origin: "https://evil.example", want: ""},
		{name: "wildcard echoes origin", allowed: []string{"*"}, origin: "https://widget.example", want: "https://widget.example"},
		{name: "no origin header", allowed: []string{"*"}, origin: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec, called := serveCORS(tc.allowed, req)

			assert.True(t, called, "simple requests always reach the handler")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.want, rec.Header().Get("Access-Control-Allow-Origin"))
			if tc.want != "" {
				assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/appointments", nil)
	req.Header.Set("Origin", "https://book.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec, called := serveCORS([]string{"https://book.example.com"}, req)
	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Org-Id")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	req.Header.Set("Origin", "https://evil.example")
	rec, called = serveCORS([]string{"https://book.example.com"}, req)
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
