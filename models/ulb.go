package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ulb is an Urban Local Body. Rows come from the seed process and are not
// edited by the API.
type Ulb struct {
	ID        int              `gorm:"primary_key" json:"id"`
	Name      string           `gorm:"size:150;not null;uniqueIndex" json:"name"`
	CityType  CityType         `gorm:"size:20;index" json:"city_type"`
	Latitude  *decimal.Decimal `gorm:"type:decimal(10,7)" json:"latitude"`
	Longitude *decimal.Decimal `gorm:"type:decimal(10,7)" json:"longitude"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUlb struct {
	Name      string           `json:"name" binding:"required"`
	CityType  string           `json:"city_type"`
	Latitude  *decimal.Decimal `json:"latitude"`
	Longitude *decimal.Decimal `json:"longitude"`
}

func (input *NewUlb) validate() (CityType, error) {
	if strings.TrimSpace(input.Name) == "" {
		return "", utils.NewValidationError("ulb name is required")
	}
	if strings.TrimSpace(input.CityType) == "" {
		return "", nil
	}
	cityType, ok := ParseCityType(input.CityType)
	if !ok {
		return "", utils.NewValidationError("invalid city_type %q", input.CityType)
	}
	return cityType, nil
}

// CreateUlb inserts a ULB, or returns the existing one with the same name.
func CreateUlb(ctx context.Context, db *gorm.DB, input *NewUlb) (*Ulb, error) {
	cityType, err := input.validate()
	if err != nil {
		return nil, err
	}

	var ulb Ulb
	name := strings.TrimSpace(input.Name)
	err = db.WithContext(ctx).Where("name = ?", name).First(&ulb).Error
	if err == nil {
		return &ulb, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ulb = Ulb{
		Name:      name,
		CityType:  cityType,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	}
	if err := db.WithContext(ctx).Create(&ulb).Error; err != nil {
		return nil, err
	}
	return &ulb, nil
}

func GetUlb(ctx context.Context, db *gorm.DB, id int) (*Ulb, error) {
	var ulb Ulb
	if err := db.WithContext(ctx).First(&ulb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("ulb %d not found", id)
		}
		return nil, utils.NewStorageError("failed to fetch ulb", err)
	}
	return &ulb, nil
}
