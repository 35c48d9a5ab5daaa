package handler

import (
	"net/http"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/service"
	"go.uber.org/zap"
)

// VehicleHandler handles the vehicle and ADAS system catalogues
type VehicleHandler struct {
	vehicles *service.VehicleService
	logger   *zap.Logger
}

// NewVehicleHandler creates a new VehicleHandler instance
func NewVehicleHandler(vehicles *service.VehicleService, logger *zap.Logger) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles, logger: logger}
}

// List godoc
// @Summary List vehicles
// @Tags Vehicles
// @Produce json
// @Param year query int false "Model year"
// @Param make query string false "Make (case insensitive)"
// @Success 200 {array} domain.VehicleDTO
// @Security BearerAuth
// @Router /vehicles [get]
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.List(r.Context(), queryInt(r, "year", 0), r.URL.Query().Get("make"))
	if err != nil {
		respondError(w, h.logger, err, "Failed to list vehicles")
		return
	}
	respondJSON(w, http.StatusOK, vehicles)
}

// Create godoc
// @Summary Add custom vehicle
// @Tags Vehicles
// @Accept json
// @Produce json
// @Param request body domain.CreateVehicleRequest true "Vehicle"
// @Success 201 {object} domain.VehicleDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /vehicles [post]
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateVehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vehicle, err := h.vehicles.Create(r.Context(), &req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to create vehicle")
		return
	}
	respondJSON(w, http.StatusCreated, vehicle)
}

// Update godoc
// @Summary Update vehicle
// @Description Admin only
// @Tags Vehicles
// @Accept json
// @Produce json
// @Param id path string true "Vehicle ID" format(uuid)
// @Param request body domain.UpdateVehicleRequest true "Vehicle"
// @Success 200 {object} domain.VehicleDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /vehicles/{id} [put]
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateVehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vehicle, err := h.vehicles.Update(r.Context(), id, &req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to update vehicle")
		return
	}
	respondJSON(w, http.StatusOK, vehicle)
}

// Delete godoc
// @Summary Delete vehicle
// @Description Admin only. Vehicles referenced by tickets cannot be deleted.
// @Tags Vehicles
// @Param id path string true "Vehicle ID" format(uuid)
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /vehicles/{id} [delete]
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.vehicles.Delete(r.Context(), id); err != nil {
		respondError(w, h.logger, err, "Failed to delete vehicle")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAdasSystems godoc
// @Summary List ADAS systems
// @Tags Vehicles
// @Produce json
// @Success 200 {array} domain.AdasSystemDTO
// @Security BearerAuth
// @Router /adas-systems [get]
func (h *VehicleHandler) ListAdasSystems(w http.ResponseWriter, r *http.Request) {
	systems, err := h.vehicles.ListAdasSystems(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to list ADAS systems")
		return
	}
	respondJSON(w, http.StatusOK, systems)
}
