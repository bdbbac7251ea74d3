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

// FinancialSummary is derived per-ULB data rebuilt by the summary
// reconciliation. Grain: ulb_id.
//
// The aggregate columns are always overwritten by reconciliation; the manual
// columns (financial_year, instalments, interest, grant_type) are edited
// through UpdateFinancialSummaryFields.
type FinancialSummary struct {
	ID                            int             `gorm:"primary_key" json:"id"`
	UlbId                         int             `gorm:"not null;uniqueIndex" json:"ulb_id"`
	ApprovedSchemes               int64           `gorm:"not null;default:0" json:"approved_schemes"`
	FundReleaseToUlbs             decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"fund_release_to_ulbs"`
	Amount                        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	ProjectCompleted              int64           `gorm:"not null;default:0" json:"project_completed"`
	Expenditure                   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"expenditure"`
	BalanceAmount                 decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance_amount"`
	FinancialProgressInPercentage decimal.Decimal `gorm:"type:decimal(7,2);not null;default:0" json:"financial_progress_in_percentage"`
	NumberOfTenderFloated         int64           `gorm:"not null;default:0" json:"number_of_tender_floated"`
	TenderNotFloated              int64           `gorm:"not null;default:0" json:"tender_not_floated"`
	WorkInProgress                int64           `gorm:"not null;default:0" json:"work_in_progress"`

	FinancialYear    *string          `gorm:"size:9" json:"financial_year"`
	FirstInstalment  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"first_instalment"`
	SecondInstalment *decimal.Decimal `gorm:"type:decimal(20,4)" json:"second_instalment"`
	InterestAmount   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"interest_amount"`
	GrantType        *GrantType       `gorm:"size:20" json:"grant_type"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FinancialSummaryFieldsInput is the manual-field group. Absent fields are
// written as NULL.
type FinancialSummaryFieldsInput struct {
	UlbId            int                `json:"ulb_id" binding:"required,gt=0"`
	FinancialYear    *string            `json:"financial_year"`
	FirstInstalment  *utils.FlexDecimal `json:"first_instalment"`
	SecondInstalment *utils.FlexDecimal `json:"second_instalment"`
	InterestAmount   *utils.FlexDecimal `json:"interest_amount"`
	GrantType        *string            `json:"grant_type"`
}

// column => value for the manual group, nil meaning NULL
func (input *FinancialSummaryFieldsInput) fillable() (map[string]interface{}, error) {
	if input.UlbId <= 0 {
		return nil, utils.NewValidationError("ulb_id is required")
	}

	fields := map[string]interface{}{
		"financial_year":    nil,
		"first_instalment":  nil,
		"second_instalment": nil,
		"interest_amount":   nil,
		"grant_type":        nil,
	}

	if fy := utils.NilIfBlank(input.FinancialYear); fy != nil {
		canonical, err := CanonicalFinancialYear(*fy)
		if err != nil {
			return nil, err
		}
		fields["financial_year"] = canonical
	}
	amounts := []struct {
		column string
		value  *utils.FlexDecimal
	}{
		{"first_instalment", input.FirstInstalment},
		{"second_instalment", input.SecondInstalment},
		{"interest_amount", input.InterestAmount},
	}
	for _, a := range amounts {
		if a.value == nil {
			continue
		}
		if a.value.IsNegative() {
			return nil, utils.NewValidationError("%s must not be negative", a.column)
		}
		fields[a.column] = a.value.Decimal
	}
	if gt := utils.NilIfBlank(input.GrantType); gt != nil {
		grantType, ok := ParseGrantType(*gt)
		if !ok {
			return nil, utils.NewValidationError("invalid grant_type %q", *gt)
		}
		fields["grant_type"] = grantType
	}
	return fields, nil
}

func GetFinancialSummaryByUlb(ctx context.Context, db *gorm.DB, ulbId int) (*FinancialSummary, error) {
	var summary FinancialSummary
	if err := db.WithContext(ctx).Where("ulb_id = ?", ulbId).First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("financial summary for ulb %d not found", ulbId)
		}
		return nil, utils.NewStorageError("failed to fetch financial summary", err)
	}
	return &summary, nil
}

// UpdateFinancialSummaryFields overwrites the whole manual-field group of one
// summary row. The row must already exist; nothing is written otherwise.
// Returns the stored row and the written columns.
func UpdateFinancialSummaryFields(ctx context.Context, db *gorm.DB, input *FinancialSummaryFieldsInput) (*FinancialSummary, map[string]interface{}, error) {
	fields, err := input.fillable()
	if err != nil {
		return nil, nil, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&FinancialSummary{}).
		Where("ulb_id = ?", input.UlbId).Count(&count).Error; err != nil {
		return nil, nil, utils.NewStorageError("failed to look up financial summary", err)
	}
	if count == 0 {
		return nil, nil, utils.NewNotFoundError("financial summary for ulb %d not found", input.UlbId)
	}

	if err := db.WithContext(ctx).Model(&FinancialSummary{}).
		Where("ulb_id = ?", input.UlbId).
		Updates(fields).Error; err != nil {
		return nil, nil, utils.NewStorageError("failed to update financial summary", err)
	}

	summary, err := GetFinancialSummaryByUlb(ctx, db, input.UlbId)
	if err != nil {
		return nil, nil, err
	}
	return summary, fields, nil
}

// ListFinancialSummaries returns stored rows ordered by ulb_id, optionally
// restricted to the given grant type.
func ListFinancialSummaries(ctx context.Context, db *gorm.DB, grantType *string) ([]*FinancialSummary, error) {
	var results []*FinancialSummary
	dbCtx := db.WithContext(ctx).Model(&FinancialSummary{})
	if gt := utils.NilIfBlank(grantType); gt != nil {
		dbCtx = dbCtx.Where("grant_type = ?", strings.ToLower(*gt))
	}
	if err := dbCtx.Order("ulb_id ASC").Find(&results).Error; err != nil {
		return nil, utils.NewStorageError("failed to list financial summaries", err)
	}
	return results, nil
}
