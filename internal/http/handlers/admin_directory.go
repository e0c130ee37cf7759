package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/booking-engine/internal/directory"
	"github.com/wolfman30/booking-engine/internal/orgconfig"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// ConfigWriter stores business configurations.
type ConfigWriter interface {
	Set(ctx context.Context, cfg *orgconfig.BusinessConfiguration) error
}

// AdminDirectoryHandler maintains the staff, resources and business
// configuration an organization books against.
type AdminDirectoryHandler struct {
	dir     directory.Directory
	configs ConfigWriter
	logger  *logging.Logger
}

func NewAdminDirectoryHandler(dir directory.Directory, configs ConfigWriter, logger *logging.Logger) *AdminDirectoryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminDirectoryHandler{dir: dir, configs: configs, logger: logger}
}

// PutConfig replaces the org's business configuration.
// Route: PUT /admin/orgs/{orgID}/config
func (h *AdminDirectoryHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg orgconfig.BusinessConfiguration
	if !decodeJSON(w, r, &cfg) {
		return
	}
	cfg.OrgID = orgIDFromRequest(r)
	if err := cfg.Validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.configs.Set(r.Context(), &cfg); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.ForOrg(cfg.OrgID).Info("business configuration updated", "model", cfg.AppointmentModel, "actor", actor(r))
	writeJSON(w, http.StatusOK, cfg)
}

// PutStaff creates or replaces a staff member.
// Route: PUT /admin/orgs/{orgID}/staff/{staffID}
func (h *AdminDirectoryHandler) PutStaff(w http.ResponseWriter, r *http.Request) {
	var s directory.Staff
	if !decodeJSON(w, r, &s) {
		return
	}
	s.OrgID = orgIDFromRequest(r)
	s.ID = chi.URLParam(r, "staffID")
	if err := directory.ValidateStaff(&s); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.dir.UpsertStaff(r.Context(), &s); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.ForOrg(s.OrgID).Info("staff saved", "staff_id", s.ID, "actor", actor(r))
	writeJSON(w, http.StatusOK, s)
}

// PutResource creates or replaces a resource.
// Route: PUT /admin/orgs/{orgID}/resources/{resourceID}
func (h *AdminDirectoryHandler) PutResource(w http.ResponseWriter, r *http.Request) {
	var res directory.Resource
	if !decodeJSON(w, r, &res) {
		return
	}
	res.OrgID = orgIDFromRequest(r)
	res.ID = chi.URLParam(r, "resourceID")
	if err := directory.ValidateResource(&res); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.dir.UpsertResource(r.Context(), &res); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.ForOrg(res.OrgID).Info("resource saved", "resource_id", res.ID, "actor", actor(r))
	writeJSON(w, http.StatusOK, res)
}
