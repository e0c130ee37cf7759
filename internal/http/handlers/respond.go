package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/booking-engine/internal/apperr"
	httpmiddleware "github.com/wolfman30/booking-engine/internal/http/middleware"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps an error code to the HTTP status it is reported with.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeNotFound, apperr.CodeConfigNotFound:
		return http.StatusNotFound
	case apperr.CodePastDate, apperr.CodeAdvanceWindowExceeded, apperr.CodeInactiveEntity:
		return http.StatusUnprocessableEntity
	case apperr.CodeStaffUnavailable, apperr.CodeResourceUnavailable, apperr.CodeNoAvailability,
		apperr.CodeSlotUnavailable, apperr.CodeConcurrentModification, apperr.CodeOverrideConflict,
		apperr.CodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err as {"error": {"code", "message"}}. Untyped errors are
// logged and reported as INTERNAL without their text.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: apperr.MessageOf(err)}})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	err := apperr.InvalidArgument(format, args...)
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: err.Code, Message: err.Message}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid JSON body: %v", err)
		return false
	}
	return true
}

func queryInt(r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// actor names the admin behind a request for audit logs.
func actor(r *http.Request) string {
	if claims, ok := httpmiddleware.AdminClaimsFromContext(r.Context()); ok {
		return claims.Actor()
	}
	return "unknown"
}
