package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRouter(secret string, seen *AdminClaims) http.Handler {
	r := chi.NewRouter()
	r.Route("/admin/orgs/{orgID}", func(admin chi.Router) {
		admin.Use(AdminJWT(secret))
		admin.Put("/config", func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := AdminClaimsFromContext(r.Context()); ok && seen != nil {
				*seen = claims
			}
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func sendAdmin(h http.Handler, path, authorization string) int {
	req := httptest.NewRequest(http.MethodPut, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAdminJWTRejects(t *testing.T) {
	valid := signToken(t, "secret", jwt.SigningMethodHS256, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	noExpiry := signToken(t, "secret", jwt.SigningMethodHS256, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"},
	})
	expired := signToken(t, "secret", jwt.SigningMethodHS256, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
	})
	wrongKey := signToken(t, "other", jwt.SigningMethodHS256, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})

	cases := map[string]struct {
		secret string
		auth   string
	}{
		"auth disabled":   {secret: "", auth: "Bearer " + valid},
		"missing header":  {secret: "secret", auth: ""},
		"basic scheme":    {secret: "secret", auth: "Basic abc"},
		"empty bearer":    {secret: "secret", auth: "Bearer "},
		"wrong key":       {secret: "secret", auth: "Bearer " + wrongKey},
		"expired":         {secret: "secret", auth: "Bearer " + expired},
		"missing expiry":  {secret: "secret", auth: "Bearer " + noExpiry},
		"garbage token":   {secret: "secret", auth: "Bearer not.a.jwt"},
		"unsigned (none)": {secret: "secret", auth: "Bearer " + unsignedToken(t)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, sendAdmin(adminRouter(tc.secret, nil), "/admin/orgs/org-a/config", tc.auth))
		})
	}
}

func TestAdminJWTAcceptsValidToken(t *testing.T) {
	var seen AdminClaims
	h := adminRouter("secret", &seen)
	token := signToken(t, "secret", jwt.SigningMethodHS384, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})

	assert.Equal(t, http.StatusOK, sendAdmin(h, "/admin/orgs/org-a/config", "bearer "+token))
	assert.Equal(t, "ops", seen.Actor())
}

func TestAdminJWTOrgScopedToken(t *testing.T) {
	h := adminRouter("secret", nil)
	token := signToken(t, "secret", jwt.SigningMethodHS256, AdminClaims{
		OrgID:            "org-a",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})

	assert.Equal(t, http.StatusOK, sendAdmin(h, "/admin/orgs/org-a/config", "Bearer "+token))
	assert.Equal(t, http.StatusForbidden, sendAdmin(h, "/admin/orgs/org-b/config", "Bearer "+token))
}

func TestAdminClaimsActorFallback(t *testing.T) {
	assert.Equal(t, "admin", AdminClaims{}.Actor())
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims AdminClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	claims := AdminClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return signed
}
