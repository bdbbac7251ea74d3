package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// SchemeCorrectionInput is a partial update: nil fields are left untouched.
type SchemeCorrectionInput struct {
	Sector                              *string            `json:"sector"`
	ProjectCompletionStatus             *string            `json:"project_completion_status"`
	ProjectCompletionStatusInPercentage *utils.FlexDecimal `json:"project_completion_status_in_percentage"`
	TenderFloated                       *string            `json:"tender_floated"`
	FinancialProgress                   *utils.FlexDecimal `json:"financial_progress"`
	FinancialProgressInPercentage       *utils.FlexDecimal `json:"financial_progress_in_percentage"`
}

// changes resolves the input against the stored scheme into the column set to
// write. Every rule is checked before anything is returned, so a failing
// request never writes.
func (input *SchemeCorrectionInput) changes(existing *Scheme) (map[string]interface{}, error) {
	changes := make(map[string]interface{})

	if input.Sector != nil {
		if strings.TrimSpace(*input.Sector) == "" {
			return nil, utils.NewValidationError("sector must be a non-empty string")
		}
		sector, ok := ParseSector(*input.Sector)
		if !ok {
			return nil, utils.NewValidationError("invalid sector %q", *input.Sector)
		}
		changes["sector"] = sector
	}

	var status YesNo
	if input.ProjectCompletionStatus != nil {
		var ok bool
		status, ok = ParseYesNo(*input.ProjectCompletionStatus)
		if !ok {
			return nil, utils.NewValidationError("project_completion_status must be yes or no")
		}
		changes["project_completion_status"] = status
	}

	// completed always means 100%, whatever percentage came with it
	if status == Yes {
		changes["project_completion_status_in_percentage"] = hundred
	} else if input.ProjectCompletionStatusInPercentage != nil {
		pct := input.ProjectCompletionStatusInPercentage.Decimal
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return nil, utils.NewValidationError("project_completion_status_in_percentage must be between 0 and 100")
		}
		changes["project_completion_status_in_percentage"] = pct.Round(2)
	}

	if input.TenderFloated != nil {
		tender, ok := ParseYesNo(*input.TenderFloated)
		if !ok {
			return nil, utils.NewValidationError("tender_floated must be yes or no")
		}
		changes["tender_floated"] = tender
	}

	if input.FinancialProgress != nil {
		progress := input.FinancialProgress.Decimal
		pct, err := financialProgressPercentage(progress, existing.ApprovedProjectCost)
		if err != nil {
			return nil, err
		}
		changes["financial_progress"] = progress
		changes["financial_progress_in_percentage"] = pct
	} else if input.FinancialProgressInPercentage != nil {
		pct := input.FinancialProgressInPercentage.Decimal
		if pct.IsNegative() {
			return nil, utils.NewValidationError("financial_progress_in_percentage must not be negative")
		}
		changes["financial_progress_in_percentage"] = pct.Round(2)
	}

	return changes, nil
}

// CorrectScheme applies a manual correction to one scheme, identified by its
// public scheme_id. Returns the stored scheme and the written columns.
func CorrectScheme(ctx context.Context, db *gorm.DB, schemeId string, input *SchemeCorrectionInput) (*Scheme, map[string]interface{}, error) {
	schemeId = strings.TrimSpace(schemeId)
	if schemeId == "" {
		return nil, nil, utils.NewValidationError("scheme_id is required")
	}

	existing, err := GetSchemeBySchemeId(ctx, db, schemeId)
	if err != nil {
		return nil, nil, err
	}

	changes, err := input.changes(existing)
	if err != nil {
		return nil, nil, err
	}
	if len(changes) == 0 {
		return nil, nil, utils.NewValidationError("no fields to update")
	}
	changes["updated_at"] = time.Now().UTC()

	if err := db.WithContext(ctx).Model(&Scheme{}).
		Where("id = ?", existing.ID).
		Updates(changes).Error; err != nil {
		return nil, nil, utils.NewStorageError("failed to update scheme", err)
	}

	updated, err := GetSchemeBySchemeId(ctx, db, schemeId)
	if err != nil {
		return nil, nil, err
	}
	return updated, changes, nil
}
