package reports

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

// '!' escapes LIKE wildcards the same way in MySQL and SQLite
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

type CityTypeDashboardFilter struct {
	UlbName       string `form:"ulb_name" json:"ulb_name"`
	GrantType     string `form:"grant_type" json:"grant_type"`
	FinancialYear string `form:"financial_year" json:"financial_year"`
	Sector        string `form:"sector" json:"sector"`
}

const cityTypeDashboardSelect = `
    u.id AS ulb_id,
    u.name AS ulb_name,
    u.latitude,
    u.longitude,
    fs.approved_schemes,
    fs.fund_release_to_ulbs,
    fs.amount,
    fs.project_completed,
    fs.expenditure,
    fs.balance_amount,
    fs.financial_progress_in_percentage,
    fs.number_of_tender_floated,
    fs.tender_not_floated,
    fs.work_in_progress,
    fs.financial_year,
    fs.first_instalment,
    fs.second_instalment,
    fs.interest_amount,
    fs.grant_type`

// BuildCityTypeDashboardQuery lists stored summaries of ULBs that have at least
// one scheme of the given city type (and sector, when filtered).
func BuildCityTypeDashboardQuery(db *gorm.DB, cityType models.CityType, filter CityTypeDashboardFilter) (*gorm.DB, error) {
	if !cityType.IsValid() {
		return nil, utils.NewValidationError("invalid city_type %q", cityType)
	}

	schemeSQL := "EXISTS (SELECT 1 FROM schemes AS s WHERE s.ulb_id = u.id AND s.city_type = ?"
	schemeArgs := []interface{}{string(cityType)}
	if v := strings.TrimSpace(filter.Sector); v != "" {
		sector, ok := models.ParseSector(v)
		if !ok {
			return nil, utils.NewValidationError("invalid sector %q", v)
		}
		schemeSQL += " AND s.sector = ?"
		schemeArgs = append(schemeArgs, string(sector))
	}
	schemeSQL += ")"

	query := db.Table("financial_summaries AS fs").
		Select(cityTypeDashboardSelect).
		Joins("JOIN ulbs AS u ON u.id = fs.ulb_id").
		Where(schemeSQL, schemeArgs...)

	if v := strings.TrimSpace(filter.UlbName); v != "" {
		query = query.Where("u.name LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(v)+"%")
	}
	if v := strings.TrimSpace(filter.GrantType); v != "" {
		grantType, ok := models.ParseGrantType(v)
		if !ok {
			return nil, utils.NewValidationError("invalid grant_type %q", v)
		}
		query = query.Where("fs.grant_type = ?", string(grantType))
	}
	if v := strings.TrimSpace(filter.FinancialYear); v != "" {
		fy, err := models.CanonicalFinancialYear(v)
		if err != nil {
			return nil, err
		}
		query = query.Where("fs.financial_year = ?", fy)
	}
	return query.Order("u.id ASC"), nil
}

func GetCityTypeDashboard(ctx context.Context, db *gorm.DB, cityType models.CityType, filter CityTypeDashboardFilter) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "reports.GetCityTypeDashboard")
	defer span.End()
	span.SetAttributes(attribute.String("city_type", string(cityType)))
	started := time.Now()

	query, err := BuildCityTypeDashboardQuery(db.WithContext(ctx), cityType, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rows := make([]map[string]any, 0)
	if err := query.Find(&rows).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dashboard query failed")
		return nil, utils.NewStorageError("failed to load city type dashboard", err)
	}

	logSlowReport(ctx, "city_type_dashboard", started, map[string]any{"city_type": cityType, "rows": len(rows)})
	return NormalizeRows(rows), nil
}
