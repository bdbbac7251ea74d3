package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Scheme is a funded project of one ULB.
//
// FinancialProgressInPercentage is derived from FinancialProgress and
// ApprovedProjectCost whenever progress is corrected, see CorrectScheme.
type Scheme struct {
	ID                                  int             `gorm:"primary_key" json:"id"`
	SchemeId                            string          `gorm:"size:64;not null;uniqueIndex" json:"scheme_id"`
	UlbId                               int             `gorm:"not null;index" json:"ulb_id"`
	SchemeName                          string          `gorm:"size:255;not null" json:"scheme_name"`
	ProjectCost                         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"project_cost"`
	ApprovedProjectCost                 decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"approved_project_cost"`
	Sector                              *Sector         `gorm:"size:20;index" json:"sector"`
	GrantType                           GrantType       `gorm:"size:20;index" json:"grant_type"`
	CityType                            CityType        `gorm:"size:20;index" json:"city_type"`
	DateOfApproval                      *time.Time      `gorm:"index" json:"date_of_approval"`
	FinancialYear                       string          `gorm:"size:9" json:"financial_year"`
	TenderFloated                       YesNo           `gorm:"size:3;not null;default:no" json:"tender_floated"`
	ProjectCompletionStatus             YesNo           `gorm:"size:3;not null;default:no" json:"project_completion_status"`
	FinancialProgress                   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"financial_progress"`
	FinancialProgressInPercentage       decimal.Decimal `gorm:"type:decimal(7,2);not null;default:0" json:"financial_progress_in_percentage"`
	ProjectCompletionStatusInPercentage decimal.Decimal `gorm:"type:decimal(7,2);not null;default:0" json:"project_completion_status_in_percentage"`
	CreatedAt                           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewScheme struct {
	UlbId               int              `json:"ulb_id" binding:"required"`
	SchemeName          string           `json:"scheme_name" binding:"required"`
	ProjectCost         decimal.Decimal  `json:"project_cost"`
	ApprovedProjectCost decimal.Decimal  `json:"approved_project_cost"`
	Sector              *string          `json:"sector"`
	GrantType           string           `json:"grant_type" binding:"required"`
	CityType            string           `json:"city_type" binding:"required"`
	DateOfApproval      *time.Time       `json:"date_of_approval"`
	FinancialYear       string           `json:"financial_year"`
	TenderFloated       string           `json:"tender_floated"`
	Completed           string           `json:"project_completion_status"`
	FinancialProgress   *decimal.Decimal `json:"financial_progress"`
}

// CreateScheme is used by the seed process; the API has no create path.
func CreateScheme(ctx context.Context, db *gorm.DB, input *NewScheme) (*Scheme, error) {
	grantType, ok := ParseGrantType(input.GrantType)
	if !ok {
		return nil, utils.NewValidationError("invalid grant_type %q", input.GrantType)
	}
	cityType, ok := ParseCityType(input.CityType)
	if !ok {
		return nil, utils.NewValidationError("invalid city_type %q", input.CityType)
	}
	var sector *Sector
	if s := utils.NilIfBlank(input.Sector); s != nil {
		parsed, ok := ParseSector(*s)
		if !ok {
			return nil, utils.NewValidationError("invalid sector %q", *s)
		}
		sector = &parsed
	}
	if input.ProjectCost.IsNegative() || input.ApprovedProjectCost.IsNegative() {
		return nil, utils.NewValidationError("project costs must not be negative")
	}
	tender := No
	if input.TenderFloated != "" {
		if tender, ok = ParseYesNo(input.TenderFloated); !ok {
			return nil, utils.NewValidationError("tender_floated must be yes or no")
		}
	}
	completed := No
	if input.Completed != "" {
		if completed, ok = ParseYesNo(input.Completed); !ok {
			return nil, utils.NewValidationError("project_completion_status must be yes or no")
		}
	}

	if _, err := GetUlb(ctx, db, input.UlbId); err != nil {
		return nil, err
	}

	scheme := Scheme{
		UlbId:                   input.UlbId,
		SchemeName:              strings.TrimSpace(input.SchemeName),
		ProjectCost:             input.ProjectCost,
		ApprovedProjectCost:     input.ApprovedProjectCost,
		Sector:                  sector,
		GrantType:               grantType,
		CityType:                cityType,
		DateOfApproval:          input.DateOfApproval,
		FinancialYear:           strings.TrimSpace(input.FinancialYear),
		TenderFloated:           tender,
		ProjectCompletionStatus: completed,
	}
	if completed == Yes {
		scheme.ProjectCompletionStatusInPercentage = decimal.NewFromInt(100)
	}
	if input.FinancialProgress != nil {
		pct, err := financialProgressPercentage(*input.FinancialProgress, input.ApprovedProjectCost)
		if err != nil {
			return nil, err
		}
		scheme.FinancialProgress = *input.FinancialProgress
		scheme.FinancialProgressInPercentage = pct
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		schemeId, err := NextSchemeId(ctx, tx, input.UlbId)
		if err != nil {
			return err
		}
		scheme.SchemeId = schemeId
		return tx.Create(&scheme).Error
	})
	if err != nil {
		return nil, err
	}
	return &scheme, nil
}

// NextSchemeId returns "sch-{ulbId}-{seq}" where seq is one past the highest
// sequence already used by that ULB.
func NextSchemeId(ctx context.Context, db *gorm.DB, ulbId int) (string, error) {
	prefix := fmt.Sprintf("sch-%d-", ulbId)
	var existing []string
	if err := db.WithContext(ctx).Model(&Scheme{}).
		Where("ulb_id = ? AND scheme_id LIKE ?", ulbId, prefix+"%").
		Pluck("scheme_id", &existing).Error; err != nil {
		return "", err
	}
	maxSeq := 0
	for _, id := range existing {
		seq, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return prefix + strconv.Itoa(maxSeq+1), nil
}

func GetSchemeBySchemeId(ctx context.Context, db *gorm.DB, schemeId string) (*Scheme, error) {
	var scheme Scheme
	if err := db.WithContext(ctx).Where("scheme_id = ?", schemeId).First(&scheme).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("scheme %s not found", schemeId)
		}
		return nil, utils.NewStorageError("failed to fetch scheme", err)
	}
	return &scheme, nil
}

// round(progress / approvedCost * 100, 2); approvedCost must be positive.
func financialProgressPercentage(progress decimal.Decimal, approvedCost decimal.Decimal) (decimal.Decimal, error) {
	if progress.IsNegative() {
		return decimal.Zero, utils.NewValidationError("financial_progress must not be negative")
	}
	if !approvedCost.IsPositive() {
		return decimal.Zero, utils.NewValidationError("approved_project_cost must be greater than 0 to derive financial_progress_in_percentage")
	}
	return progress.Mul(decimal.NewFromInt(100)).Div(approvedCost).Round(2), nil
}
