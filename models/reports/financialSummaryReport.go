package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("ulb-finance-backend/reports")

// FinancialSummaryFilter holds the optional report filters. Blank fields are
// absent and contribute no predicate.
type FinancialSummaryFilter struct {
	CityType      string `form:"city_type" json:"city_type"`
	GrantType     string `form:"grant_type" json:"grant_type"`
	Sector        string `form:"sector" json:"sector"`
	FinancialYear string `form:"financial_year" json:"financial_year"`
}

func (f FinancialSummaryFilter) IsEmpty() bool {
	return strings.TrimSpace(f.CityType) == "" &&
		strings.TrimSpace(f.GrantType) == "" &&
		strings.TrimSpace(f.Sector) == "" &&
		strings.TrimSpace(f.FinancialYear) == ""
}

const financialSummarySelect = `
    u.id AS ulb_id,
    u.name AS ulb_name,
    COUNT(s.id) AS approved_schemes,
    COALESCE(SUM(s.project_cost), 0) AS fund_release_to_ulbs,
    COALESCE(SUM(s.approved_project_cost), 0) AS amount,
    COALESCE(SUM(CASE WHEN s.project_completion_status = 'yes' THEN 1 ELSE 0 END), 0) AS project_completed,
    COALESCE(SUM(s.financial_progress), 0) AS expenditure,
    COALESCE(SUM(s.project_cost), 0) - COALESCE(SUM(s.financial_progress), 0) AS balance_amount,
    COALESCE(ROUND(AVG(s.financial_progress_in_percentage), 2), 0) AS financial_progress_in_percentage,
    COALESCE(SUM(CASE WHEN s.tender_floated = 'yes' THEN 1 ELSE 0 END), 0) AS number_of_tender_floated,
    COALESCE(SUM(CASE WHEN s.tender_floated = 'no' THEN 1 ELSE 0 END), 0) AS tender_not_floated,
    COUNT(s.id) - COALESCE(SUM(CASE WHEN s.project_completion_status = 'yes' THEN 1 ELSE 0 END), 0) AS work_in_progress`

// BuildFinancialSummaryQuery returns the per-ULB aggregation as an unexecuted
// query. Every filter value is bound as a parameter.
//
// ULBs are outer-joined so an unfiltered run lists every ULB, zero aggregates
// included. With any filter present, only ULBs with at least one matching
// scheme are returned.
func BuildFinancialSummaryQuery(db *gorm.DB, filter FinancialSummaryFilter) (*gorm.DB, error) {
	selectSQL := financialSummarySelect
	var selectArgs []interface{}

	joinSQL := "LEFT JOIN schemes AS s ON s.ulb_id = u.id"
	var joinArgs []interface{}

	if v := strings.TrimSpace(filter.CityType); v != "" {
		cityType, ok := models.ParseCityType(v)
		if !ok {
			return nil, utils.NewValidationError("invalid city_type %q", v)
		}
		joinSQL += " AND s.city_type = ?"
		joinArgs = append(joinArgs, string(cityType))
	}
	if v := strings.TrimSpace(filter.GrantType); v != "" {
		grantType, ok := models.ParseGrantType(v)
		if !ok {
			return nil, utils.NewValidationError("invalid grant_type %q", v)
		}
		joinSQL += " AND s.grant_type = ?"
		joinArgs = append(joinArgs, string(grantType))
		// the filtered grant type is carried into the summary's manual field
		selectSQL += ",\n    ? AS grant_type"
		selectArgs = append(selectArgs, string(grantType))
	}
	if v := strings.TrimSpace(filter.Sector); v != "" {
		sector, ok := models.ParseSector(v)
		if !ok {
			return nil, utils.NewValidationError("invalid sector %q", v)
		}
		joinSQL += " AND s.sector = ?"
		joinArgs = append(joinArgs, string(sector))
	}
	if v := strings.TrimSpace(filter.FinancialYear); v != "" {
		year, err := models.ParseFinancialYear(v)
		if err != nil {
			return nil, err
		}
		from, to := models.CalendarYearRange(year)
		joinSQL += " AND s.date_of_approval >= ? AND s.date_of_approval < ?"
		joinArgs = append(joinArgs, from, to)
		selectSQL += ",\n    ? AS financial_year"
		selectArgs = append(selectArgs, models.FormatFinancialYear(year))
	}

	query := db.Table("ulbs AS u").
		Select(selectSQL, selectArgs...).
		Joins(joinSQL, joinArgs...).
		Group("u.id, u.name")
	if !filter.IsEmpty() {
		query = query.Having("COUNT(s.id) > 0")
	}
	return query.Order("u.id ASC"), nil
}

// GetFinancialSummaryReport runs the aggregation. Rows come back as the driver
// decoded them; pass them through NormalizeRows before serializing.
func GetFinancialSummaryReport(ctx context.Context, db *gorm.DB, filter FinancialSummaryFilter) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "reports.GetFinancialSummaryReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("filter.city_type", filter.CityType),
		attribute.String("filter.grant_type", filter.GrantType),
		attribute.String("filter.sector", filter.Sector),
		attribute.String("filter.financial_year", filter.FinancialYear),
	)
	started := time.Now()

	query, err := BuildFinancialSummaryQuery(db.WithContext(ctx), filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rows := make([]map[string]any, 0)
	if err := query.Find(&rows).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		return nil, utils.NewStorageError(utils.ErrAggregationFailed.Error(), fmt.Errorf("%w: %v", utils.ErrAggregationFailed, err))
	}

	span.SetAttributes(attribute.Int("rows", len(rows)))
	logSlowReport(ctx, "financial_summary", started, map[string]any{"rows": len(rows)})
	return rows, nil
}
