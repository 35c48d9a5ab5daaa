package database

import (
	"context"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultAdasSystems is the catalogue installed with a fresh schema
var DefaultAdasSystems = []domain.AdasSystem{
	{Code: "ACC", Name: "Adaptive Cruise Control", Description: "Radar or camera based distance keeping"},
	{Code: "AEB", Name: "Automatic Emergency Braking", Description: "Forward collision mitigation"},
	{Code: "BSM", Name: "Blind Spot Monitoring", Description: "Rear corner radar"},
	{Code: "LDW", Name: "Lane Departure Warning", Description: "Forward camera lane detection"},
	{Code: "LKA", Name: "Lane Keeping Assist", Description: "Steering intervention from the forward camera"},
	{Code: "NV", Name: "Night Vision", Description: "Infrared camera"},
	{Code: "PA", Name: "Parking Assist", Description: "Ultrasonic park sensors"},
	{Code: "RCTA", Name: "Rear Cross Traffic Alert", Description: "Rear corner radar cross traffic"},
	{Code: "SVC", Name: "Surround View Camera", Description: "Multi camera bird's eye view"},
	{Code: "HUD", Name: "Head-Up Display", Description: "Windshield projected display"},
}

// SeedAdasSystems inserts the default catalogue, leaving existing codes alone
func SeedAdasSystems(ctx context.Context, db *gorm.DB) error {
	systems := make([]domain.AdasSystem, len(DefaultAdasSystems))
	copy(systems, DefaultAdasSystems)
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&systems).Error
}
