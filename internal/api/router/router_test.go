package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/booking-engine/internal/appointments"
	"github.com/wolfman30/booking-engine/internal/assignment"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/internal/directory"
	"github.com/wolfman30/booking-engine/internal/generation"
	"github.com/wolfman30/booking-engine/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/booking-engine/internal/http/middleware"
	"github.com/wolfman30/booking-engine/internal/orgconfig"
	"github.com/wolfman30/booking-engine/internal/reservation"
	"github.com/wolfman30/booking-engine/internal/slotfinder"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

const (
	testSecret = "router-secret"
	testOrg    = "org-test"
)

type testServer struct {
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T, ready func(context.Context) error) *testServer {
	t.Helper()
	logger := logging.Default()
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	avail := availability.NewService(availability.NewMemoryStore(), logger)
	dir := directory.NewMemoryRepository()
	configs := orgconfig.NewMemoryStore()
	finder := slotfinder.New(avail, dir, logger, slotfinder.Options{})
	manager := reservation.NewManager(finder, avail, reservation.NewMemoryLedger(), logger)
	appts := appointments.NewService(appointments.NewMemoryRepository(), configs, assignment.New(finder, logger), manager, logger,
		appointments.WithClock(func() time.Time { return clock }))
	gen := generation.New(avail, dir, configs, logger, generation.WithLivenessChecker(appts))

	handler := New(&Config{
		Logger:          logger,
		Availability:    handlers.NewAvailabilityHandler(avail, gen, finder, logger),
		Appointments:    handlers.NewAppointmentHandler(appts, logger),
		AdminDirectory:  handlers.NewAdminDirectoryHandler(dir, configs, logger),
		AdminAuthSecret: testSecret,
		RateLimiter:     httpmiddleware.NewRateLimiter(100, 100),
		Ready:           ready,
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return &testServer{handler: handler, token: signed}
}

func (s *testServer) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+s.token)
	} else {
		req.Header.Set("X-Org-Id", testOrg)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestRouterHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := srv.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])

	srv = newTestServer(t, func(context.Context) error { return errors.New("redis down") })
	rr = srv.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouterRequiresOrgAndAdminToken(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments?start_date=2026-03-02", nil)
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodPut, "/admin/orgs/"+testOrg+"/config", map[string]any{}, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouterBookingFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	day := map[string]any{"is_available": true, "start_time": "09:00", "end_time": "12:00"}
	week := map[string]any{"monday": day, "tuesday": day}

	rr := srv.do(t, http.MethodPut, "/admin/orgs/"+testOrg+"/config", map[string]any{
		"appointment_model":        "professional_based",
		"max_advance_booking_days": 30,
		"notification_settings":    map[string]any{"require_confirmation": false},
		"cancellation_policy":      map[string]any{"hours_before_appointment": 24, "penalty_percentage": 50},
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPut, "/admin/orgs/"+testOrg+"/staff/ana", map[string]any{
		"name": "Ana", "specialties": []string{"botox"}, "schedule": week, "is_active": true,
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// 2026-03-02 is a Monday.
	rr = srv.do(t, http.MethodPost, "/admin/orgs/"+testOrg+"/availability/generate", map[string]any{
		"entity_type": "staff", "entity_id": "ana", "start_date": "2026-03-02", "end_date": "2026-03-04",
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[generation.Report](t, rr)
	assert.Equal(t, []string{"2026-03-02", "2026-03-03"}, report.Created)
	assert.Equal(t, []string{"2026-03-04"}, report.Skipped)

	rr = srv.do(t, http.MethodGet, "/api/slots?date=2026-03-02&duration=30&specialties=botox", nil, false)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	slots := decode[struct {
		Matches []slotfinder.Match `json:"matches"`
	}](t, rr)
	require.Len(t, slots.Matches, 1)
	assert.Len(t, slots.Matches[0].Slots, 6)

	create := map[string]any{
		"client_info":        map[string]any{"name": "Jo"},
		"service_info":       map[string]any{"name": "Botox", "duration": 30},
		"datetime":           "2026-03-02T10:00:00Z",
		"preferred_staff_id": "ana",
	}
	rr = srv.do(t, http.MethodPost, "/api/appointments", create, false)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	appt := decode[appointments.Appointment](t, rr)
	assert.Equal(t, "ana", appt.StaffID)
	assert.Equal(t, appointments.StatusConfirmed, appt.Status)

	rr = srv.do(t, http.MethodPost, "/api/appointments", create, false)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "STAFF_UNAVAILABLE", decode[errorResponse](t, rr).Error.Code)

	rr = srv.do(t, http.MethodGet, "/api/appointments?start_date=2026-03-01&end_date=2026-03-07", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Appointments []appointments.Appointment `json:"appointments"`
	}](t, rr)
	require.Len(t, list.Appointments, 1)

	rr = srv.do(t, http.MethodPost, "/api/appointments/"+appt.ID+"/cancel", map[string]any{"cancelled_by": "client"}, false)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cancelled := decode[appointments.Appointment](t, rr)
	assert.Equal(t, appointments.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationInfo)
	assert.Equal(t, 0.0, cancelled.CancellationInfo.PenaltyApplied)

	rr = srv.do(t, http.MethodPost, "/api/appointments/"+appt.ID+"/confirm", nil, false)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[errorResponse](t, rr).Error.Code)

	rr = srv.do(t, http.MethodGet, "/api/appointments/missing", nil, false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, rr).Error.Code)
}

func TestRouterBlockAndUnblock(t *testing.T) {
	srv := newTestServer(t, nil)
	day := map[string]any{"is_available": true, "start_time": "09:00", "end_time": "10:00"}

	rr := srv.do(t, http.MethodPut, "/admin/orgs/"+testOrg+"/resources/laser", map[string]any{
		"name": "Laser", "schedule": map[string]any{"monday": day}, "is_active": true,
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPost, "/admin/orgs/"+testOrg+"/availability/generate", map[string]any{
		"start_date": "2026-03-02", "end_date": "2026-03-02", "slot_duration": 30,
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPost, "/admin/orgs/"+testOrg+"/availability/resource/laser/block", map[string]any{
		"date": "2026-03-02", "start_time": "09:00", "end_time": "09:30", "reason": "maintenance",
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	blocked := decode[availability.Availability](t, rr)
	assert.False(t, blocked.TimeSlots[0].IsAvailable)
	assert.True(t, blocked.TimeSlots[1].IsAvailable)

	rr = srv.do(t, http.MethodPost, "/admin/orgs/"+testOrg+"/availability/resource/laser/unblock", map[string]any{
		"date": "2026-03-02", "start_time": "09:00", "end_time": "09:30",
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodGet, "/api/availability/resource/laser?start_date=2026-03-02", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[struct {
		Availability []availability.Availability `json:"availability"`
	}](t, rr)
	require.Len(t, got.Availability, 1)
	assert.True(t, got.Availability[0].TimeSlots[0].IsAvailable)

	rr = srv.do(t, http.MethodGet, "/api/availability/chair/laser?start_date=2026-03-02", nil, false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
