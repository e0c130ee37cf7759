package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/booking-engine/internal/tenancy"
)

const maxOrgIDLen = 64

// requireOrgID scopes /api requests to the tenant named by X-Org-Id. The id
// becomes part of storage keys, so it is limited to a conservative alphabet.
func requireOrgID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(tenancy.Header))
		switch {
		case orgID == "":
			rejectOrg(w, "missing "+tenancy.Header)
			return
		case !validOrgID(orgID):
			rejectOrg(w, "malformed "+tenancy.Header)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithOrgID(r.Context(), orgID)))
	})
}

func validOrgID(id string) bool {
	if len(id) > maxOrgIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func rejectOrg(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "INVALID_ARGUMENT", "message": msg},
	})
}
