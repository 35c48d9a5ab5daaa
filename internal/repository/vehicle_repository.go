package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"gorm.io/gorm"
)

// VehicleRepository handles vehicle reference data
type VehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new VehicleRepository
func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle
func (r *VehicleRepository) WithTx(tx *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: tx}
}

// List returns vehicles ordered by year descending, then make and model
func (r *VehicleRepository) List(ctx context.Context, year int, vehicleMake string) ([]domain.Vehicle, error) {
	var vehicles []domain.Vehicle
	query := r.db.WithContext(ctx)
	if year > 0 {
		query = query.Where("year = ?", year)
	}
	if vehicleMake != "" {
		query = query.Where("LOWER(make) = LOWER(?)", vehicleMake)
	}
	err := query.Order("year DESC").Order("make ASC").Order("model ASC").Find(&vehicles).Error
	return vehicles, err
}

// GetByID retrieves a vehicle by ID
func (r *VehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	err := r.db.WithContext(ctx).First(&vehicle, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// Create inserts a vehicle; a duplicate triple returns ErrVehicleExists
func (r *VehicleRepository) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	if err := r.db.WithContext(ctx).Create(vehicle).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrVehicleExists
		}
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	return nil
}

// Update rewrites year, make and model
func (r *VehicleRepository) Update(ctx context.Context, vehicle *domain.Vehicle) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Vehicle{}).
		Where("id = ?", vehicle.ID).
		Updates(map[string]interface{}{
			"year":  vehicle.Year,
			"make":  vehicle.Make,
			"model": vehicle.Model,
		}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrVehicleExists
		}
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	return nil
}

// Delete removes a vehicle
func (r *VehicleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.Vehicle{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrVehicleNotFound
	}
	return nil
}

// AdasSystemRepository reads ADAS system reference data
type AdasSystemRepository struct {
	db *gorm.DB
}

// NewAdasSystemRepository creates a new AdasSystemRepository
func NewAdasSystemRepository(db *gorm.DB) *AdasSystemRepository {
	return &AdasSystemRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle
func (r *AdasSystemRepository) WithTx(tx *gorm.DB) *AdasSystemRepository {
	return &AdasSystemRepository{db: tx}
}

// List returns all systems ordered by code
func (r *AdasSystemRepository) List(ctx context.Context) ([]domain.AdasSystem, error) {
	var systems []domain.AdasSystem
	err := r.db.WithContext(ctx).Order("code ASC").Find(&systems).Error
	return systems, err
}

// KnownCodes returns the subset of codes that exist
func (r *AdasSystemRepository) KnownCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	known := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return known, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&domain.AdasSystem{}).Where("code IN ?", codes).Pluck("code", &found).Error
	if err != nil {
		return nil, err
	}
	for _, c := range found {
		known[c] = true
	}
	return known, nil
}

// Upsert inserts or updates a system by code
func (r *AdasSystemRepository) Upsert(ctx context.Context, system *domain.AdasSystem) error {
	return r.db.WithContext(ctx).Save(system).Error
}
