package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/internal/generation"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/internal/slotfinder"
	"github.com/wolfman30/booking-engine/internal/tenancy"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// AvailabilityService is the availability surface the handler drives.
type AvailabilityService interface {
	GetRange(ctx context.Context, orgID string, entityType availability.EntityType, entityID, startDate, endDate string) ([]*availability.Availability, error)
	BlockSlot(ctx context.Context, key availability.Key, startTime, endTime string, reason schedule.Reason, customReason string) (*availability.Availability, error)
	UnblockSlot(ctx context.Context, key availability.Key, startTime, endTime string) (*availability.Availability, error)
}

// Generator runs availability generation.
type Generator interface {
	GenerateForEntity(ctx context.Context, orgID string, entityType availability.EntityType, entityID string, opts generation.Options) (*generation.Report, error)
	GenerateForOrganization(ctx context.Context, orgID string, opts generation.Options) (*generation.OrgReport, error)
}

// SlotSearcher finds open slots.
type SlotSearcher interface {
	FindAvailableSlots(ctx context.Context, q slotfinder.Query) ([]slotfinder.Match, error)
}

// AvailabilityHandler serves generation, blocking and slot search.
type AvailabilityHandler struct {
	avail     AvailabilityService
	generator Generator
	finder    SlotSearcher
	logger    *logging.Logger
}

func NewAvailabilityHandler(avail AvailabilityService, generator Generator, finder SlotSearcher, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{avail: avail, generator: generator, finder: finder, logger: logger}
}

// GenerateRequest selects one entity, or the whole organization when
// EntityType is empty.
type GenerateRequest struct {
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	generation.Options
}

// Generate materialises availability.
// Route: POST /admin/orgs/{orgID}/availability/generate
func (h *AvailabilityHandler) Generate(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFromRequest(r)
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.logger.ForOrg(orgID).Info("availability generation requested",
		"entity_type", req.EntityType, "entity_id", req.EntityID, "actor", actor(r))
	if req.EntityType == "" {
		rep, err := h.generator.GenerateForOrganization(r.Context(), orgID, req.Options)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
		return
	}
	entityType, err := availability.ParseEntityType(req.EntityType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rep, err := h.generator.GenerateForEntity(r.Context(), orgID, entityType, req.EntityID, req.Options)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// BlockRequest names the interval to block or unblock on one date.
type BlockRequest struct {
	Date         string          `json:"date"`
	StartTime    string          `json:"start_time"`
	EndTime      string          `json:"end_time"`
	Reason       schedule.Reason `json:"reason,omitempty"`
	CustomReason string          `json:"custom_reason,omitempty"`
}

// Block marks free slots unavailable.
// Route: POST /admin/orgs/{orgID}/availability/{entityType}/{entityID}/block
func (h *AvailabilityHandler) Block(w http.ResponseWriter, r *http.Request) {
	key, req, ok := h.blockInput(w, r)
	if !ok {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = schedule.ReasonCustom
	}
	a, err := h.avail.BlockSlot(r.Context(), key, req.StartTime, req.EndTime, reason, req.CustomReason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.ForOrg(key.OrgID).Info("slots blocked",
		"entity_id", key.EntityID, "date", key.Date, "start", req.StartTime, "end", req.EndTime, "actor", actor(r))
	writeJSON(w, http.StatusOK, a)
}

// Unblock reopens manually blocked slots.
// Route: POST /admin/orgs/{orgID}/availability/{entityType}/{entityID}/unblock
func (h *AvailabilityHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	key, req, ok := h.blockInput(w, r)
	if !ok {
		return
	}
	a, err := h.avail.UnblockSlot(r.Context(), key, req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AvailabilityHandler) blockInput(w http.ResponseWriter, r *http.Request) (availability.Key, BlockRequest, bool) {
	var req BlockRequest
	entityType, err := availability.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		writeError(w, h.logger, err)
		return availability.Key{}, req, false
	}
	if !decodeJSON(w, r, &req) {
		return availability.Key{}, req, false
	}
	key := availability.Key{
		OrgID:      orgIDFromRequest(r),
		EntityType: entityType,
		EntityID:   chi.URLParam(r, "entityID"),
		Date:       req.Date,
	}
	if err := key.Validate(); err != nil {
		writeError(w, h.logger, err)
		return availability.Key{}, req, false
	}
	return key, req, true
}

// GetRange lists an entity's availability records.
// Route: GET /api/availability/{entityType}/{entityID}?start_date=&end_date=
func (h *AvailabilityHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	entityType, err := availability.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	startDate, endDate := q.Get("start_date"), q.Get("end_date")
	if endDate == "" {
		endDate = startDate
	}
	records, err := h.avail.GetRange(r.Context(), orgIDFromRequest(r), entityType, chi.URLParam(r, "entityID"), startDate, endDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []*availability.Availability{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": records})
}

// FindSlots searches open slots that fit a duration.
// Route: GET /api/slots?date=&duration=&entity_type=&entity_id=&specialties=
func (h *AvailabilityHandler) FindSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	duration, ok := queryInt(r, "duration")
	if !ok {
		badRequest(w, "duration must be an integer")
		return
	}
	query := slotfinder.Query{
		OrgID:               orgIDFromRequest(r),
		Date:                q.Get("date"),
		DurationMinutes:     duration,
		EntityID:            strings.TrimSpace(q.Get("entity_id")),
		RequiredSpecialties: splitList(q.Get("specialties")),
	}
	if raw := strings.TrimSpace(q.Get("entity_type")); raw != "" {
		entityType, err := availability.ParseEntityType(raw)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		query.EntityType = entityType
	}
	matches, err := h.finder.FindAvailableSlots(r.Context(), query)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if matches == nil {
		matches = []slotfinder.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// orgIDFromRequest prefers the {orgID} path parameter of admin routes and
// falls back to the tenant header stored by the router.
func orgIDFromRequest(r *http.Request) string {
	if orgID := strings.TrimSpace(chi.URLParam(r, "orgID")); orgID != "" {
		return orgID
	}
	orgID, _ := tenancy.OrgIDFromContext(r.Context())
	return orgID
}
