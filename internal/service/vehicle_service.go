package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/mapper"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
)

// VehicleService manages vehicle and ADAS system reference data
type VehicleService struct {
	core   *Core
	logger *zap.Logger
}

// NewVehicleService creates a new VehicleService instance
func NewVehicleService(core *Core, logger *zap.Logger) *VehicleService {
	return &VehicleService{core: core, logger: logger}
}

// List returns vehicles, optionally narrowed by year and make
func (s *VehicleService) List(ctx context.Context, year int, vehicleMake string) ([]domain.VehicleDTO, error) {
	var vehicles []domain.Vehicle
	err := s.core.Store.Retry(ctx, func(ctx context.Context) error {
		var err error
		vehicles, err = s.core.Vehicles.List(ctx, year, strings.TrimSpace(vehicleMake))
		return store.Classify(err)
	})
	if err != nil {
		return nil, err
	}
	dtos := make([]domain.VehicleDTO, len(vehicles))
	for i := range vehicles {
		dtos[i] = mapper.ToVehicleDTO(&vehicles[i])
	}
	return dtos, nil
}

// Create adds a custom vehicle. Any user may do this.
func (s *VehicleService) Create(ctx context.Context, req *domain.CreateVehicleRequest) (*domain.VehicleDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	creator := userCtx.UserID
	vehicle := &domain.Vehicle{
		Year:      req.Year,
		Make:      strings.TrimSpace(req.Make),
		Model:     strings.TrimSpace(req.Model),
		IsCustom:  true,
		CreatedBy: &creator,
	}

	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		if err := s.core.Vehicles.WithTx(tx.DB()).Create(ctx, vehicle); err != nil {
			return err
		}
		return s.core.audit(ctx, tx, creator, nil, domain.ActionVehicleCreated, vehicleDetails(vehicle), s.core.Clock.Now())
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToVehicleDTO(vehicle)
	return &dto, nil
}

// Update edits a vehicle. Admin only; tickets keep their snapshot.
func (s *VehicleService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateVehicleRequest) (*domain.VehicleDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !userCtx.IsAdmin() {
		return nil, ErrAdminRequired
	}

	var vehicle *domain.Vehicle
	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		vehicles := s.core.Vehicles.WithTx(tx.DB())
		var err error
		vehicle, err = vehicles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		vehicle.Year = req.Year
		vehicle.Make = strings.TrimSpace(req.Make)
		vehicle.Model = strings.TrimSpace(req.Model)
		if err := vehicles.Update(ctx, vehicle); err != nil {
			return err
		}
		return s.core.audit(ctx, tx, userCtx.UserID, nil, domain.ActionVehicleUpdated, vehicleDetails(vehicle), s.core.Clock.Now())
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToVehicleDTO(vehicle)
	return &dto, nil
}

// Delete removes a vehicle no ticket references. Admin only.
func (s *VehicleService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if !userCtx.IsAdmin() {
		return ErrAdminRequired
	}

	return s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		vehicles := s.core.Vehicles.WithTx(tx.DB())
		vehicle, err := vehicles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		refs, err := s.core.Tickets.WithTx(tx.DB()).CountByVehicle(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrVehicleInUse
		}
		if err := vehicles.Delete(ctx, id); err != nil {
			return err
		}
		return s.core.audit(ctx, tx, userCtx.UserID, nil, domain.ActionVehicleDeleted, vehicleDetails(vehicle), s.core.Clock.Now())
	})
}

// ListAdasSystems returns the ADAS system catalogue
func (s *VehicleService) ListAdasSystems(ctx context.Context) ([]domain.AdasSystemDTO, error) {
	var systems []domain.AdasSystem
	err := s.core.Store.Retry(ctx, func(ctx context.Context) error {
		var err error
		systems, err = s.core.AdasSystems.List(ctx)
		return store.Classify(err)
	})
	if err != nil {
		return nil, err
	}
	dtos := make([]domain.AdasSystemDTO, len(systems))
	for i := range systems {
		dtos[i] = mapper.ToAdasSystemDTO(&systems[i])
	}
	return dtos, nil
}

// UpsertAdasSystem adds or renames an ADAS system
func (s *VehicleService) UpsertAdasSystem(ctx context.Context, system *domain.AdasSystem) error {
	system.Code = strings.TrimSpace(system.Code)
	if system.Code == "" {
		return domain.NewValidationError("code", "This field is required")
	}
	return s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		return s.core.AdasSystems.WithTx(tx.DB()).Upsert(ctx, system)
	})
}

func vehicleDetails(v *domain.Vehicle) map[string]interface{} {
	return map[string]interface{}{
		"vehicle_id": v.ID.String(),
		"vehicle":    domain.VehicleLabel(v.Year, v.Make, v.Model),
	}
}
