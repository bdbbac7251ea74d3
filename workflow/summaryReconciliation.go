package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models/reports"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("ulb-finance-backend/workflow")

var (
	summaryCountColumns = []string{
		"approved_schemes",
		"project_completed",
		"number_of_tender_floated",
		"tender_not_floated",
		"work_in_progress",
	}
	summaryAmountColumns = []string{
		"fund_release_to_ulbs",
		"amount",
		"expenditure",
		"balance_amount",
		"financial_progress_in_percentage",
	}
)

type RowFailure struct {
	Index  int    `json:"index"`
	UlbId  int    `json:"ulb_id,omitempty"`
	Reason string `json:"reason"`
}

// ReconcileResult lists ULB ids per outcome. A duplicate-key insert that was
// retried as an update is counted under Updated.
type ReconcileResult struct {
	Inserted []int        `json:"inserted"`
	Updated  []int        `json:"updated"`
	Failed   []RowFailure `json:"failed"`
}

func newReconcileResult() *ReconcileResult {
	return &ReconcileResult{
		Inserted: []int{},
		Updated:  []int{},
		Failed:   []RowFailure{},
	}
}

// Err is nil unless at least one row failed.
func (r *ReconcileResult) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	reasons := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		reasons = append(reasons, fmt.Sprintf("row %d (ulb %d): %s", f.Index, f.UlbId, f.Reason))
	}
	return utils.NewPartialBatchError(
		fmt.Sprintf("%d of %d rows failed to reconcile", len(r.Failed), len(r.Failed)+len(r.Inserted)+len(r.Updated)),
		errors.New(strings.Join(reasons, "; ")),
	)
}

// summaryRow is one aggregation row parsed into storage types.
type summaryRow struct {
	ulbId      int
	aggregates map[string]interface{}
	// manual columns the row carried a non-null value for
	manual map[string]interface{}
}

func parseSummaryRow(row map[string]any) (*summaryRow, error) {
	rawId, ok := row["ulb_id"]
	if !ok || rawId == nil {
		return nil, utils.NewValidationError("ulb_id missing")
	}
	id, err := utils.ParseDecimal(rawId)
	if err != nil || !id.IsInteger() || !id.IsPositive() {
		return nil, utils.NewValidationError("invalid ulb_id %v", rawId)
	}

	parsed := &summaryRow{
		ulbId:      int(id.IntPart()),
		aggregates: make(map[string]interface{}, len(summaryCountColumns)+len(summaryAmountColumns)),
		manual:     make(map[string]interface{}),
	}
	for _, col := range summaryCountColumns {
		parsed.aggregates[col] = utils.ParseDecimalOrZero(row[col]).IntPart()
	}
	for _, col := range summaryAmountColumns {
		parsed.aggregates[col] = utils.ParseDecimalOrZero(row[col])
	}

	if v, ok := row["financial_year"]; ok && v != nil {
		fy, err := models.CanonicalFinancialYear(fmt.Sprint(v))
		if err != nil {
			return nil, err
		}
		parsed.manual["financial_year"] = fy
	}
	for _, col := range []string{"first_instalment", "second_instalment", "interest_amount"} {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		amount, err := utils.ParseDecimal(v)
		if err != nil {
			return nil, utils.NewValidationError("invalid %s %v", col, v)
		}
		parsed.manual[col] = amount
	}
	if v, ok := row["grant_type"]; ok && v != nil {
		grantType, ok := models.ParseGrantType(fmt.Sprint(v))
		if !ok {
			return nil, utils.NewValidationError("invalid grant_type %v", v)
		}
		parsed.manual["grant_type"] = grantType
	}
	return parsed, nil
}

func (r *summaryRow) newSummary() *models.FinancialSummary {
	summary := &models.FinancialSummary{
		UlbId:                         r.ulbId,
		ApprovedSchemes:               r.aggregates["approved_schemes"].(int64),
		FundReleaseToUlbs:             r.aggregates["fund_release_to_ulbs"].(decimal.Decimal),
		Amount:                        r.aggregates["amount"].(decimal.Decimal),
		ProjectCompleted:              r.aggregates["project_completed"].(int64),
		Expenditure:                   r.aggregates["expenditure"].(decimal.Decimal),
		BalanceAmount:                 r.aggregates["balance_amount"].(decimal.Decimal),
		FinancialProgressInPercentage: r.aggregates["financial_progress_in_percentage"].(decimal.Decimal),
		NumberOfTenderFloated:         r.aggregates["number_of_tender_floated"].(int64),
		TenderNotFloated:              r.aggregates["tender_not_floated"].(int64),
		WorkInProgress:                r.aggregates["work_in_progress"].(int64),
	}
	if v, ok := r.manual["financial_year"].(string); ok {
		summary.FinancialYear = &v
	}
	if v, ok := r.manual["first_instalment"].(decimal.Decimal); ok {
		summary.FirstInstalment = &v
	}
	if v, ok := r.manual["second_instalment"].(decimal.Decimal); ok {
		summary.SecondInstalment = &v
	}
	if v, ok := r.manual["interest_amount"].(decimal.Decimal); ok {
		summary.InterestAmount = &v
	}
	if v, ok := r.manual["grant_type"].(models.GrantType); ok {
		summary.GrantType = &v
	}
	return summary
}

// update overwrites every aggregate column and only the manual columns the
// row carried.
func (r *summaryRow) update(tx *gorm.DB) error {
	changes := make(map[string]interface{}, len(r.aggregates)+len(r.manual)+1)
	for k, v := range r.aggregates {
		changes[k] = v
	}
	for k, v := range r.manual {
		changes[k] = v
	}
	changes["updated_at"] = time.Now().UTC()
	return tx.Model(&models.FinancialSummary{}).Where("ulb_id = ?", r.ulbId).Updates(changes).Error
}

type reconcileOutcome int

const (
	outcomeInserted reconcileOutcome = iota
	outcomeUpdated
)

func reconcileRow(ctx context.Context, db *gorm.DB, row *summaryRow) (reconcileOutcome, error) {
	outcome := outcomeUpdated
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.FinancialSummary{}).Where("ulb_id = ?", row.ulbId).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return row.update(tx)
		}

		err := tx.Create(row.newSummary()).Error
		if err == nil {
			outcome = outcomeInserted
			return nil
		}
		if !utils.IsDuplicateKeyErr(err) {
			return err
		}
		// a concurrent refresh inserted the row first
		return row.update(tx)
	})
	return outcome, err
}

// ReconcileFinancialSummaries upserts each aggregation row into
// financial_summaries, keyed by ulb_id. Each row runs in its own transaction;
// a failing row is logged and recorded in the result without stopping the
// rest of the batch.
func ReconcileFinancialSummaries(ctx context.Context, db *gorm.DB, logger *logrus.Logger, rows []map[string]any) *ReconcileResult {
	ctx, span := tracer.Start(ctx, "workflow.ReconcileFinancialSummaries")
	defer span.End()

	result := newReconcileResult()
	for i, raw := range rows {
		row, err := parseSummaryRow(raw)
		if err != nil {
			config.LogError(logger, "summaryReconciliation.go", "ReconcileFinancialSummaries", "parse row", raw, err)
			result.Failed = append(result.Failed, RowFailure{Index: i, Reason: err.Error()})
			continue
		}

		outcome, err := reconcileRow(ctx, db, row)
		if err != nil {
			config.LogError(logger, "summaryReconciliation.go", "ReconcileFinancialSummaries", "upsert financial summary", raw, err)
			result.Failed = append(result.Failed, RowFailure{Index: i, UlbId: row.ulbId, Reason: err.Error()})
			continue
		}
		if outcome == outcomeInserted {
			result.Inserted = append(result.Inserted, row.ulbId)
		} else {
			result.Updated = append(result.Updated, row.ulbId)
		}
	}

	span.SetAttributes(
		attribute.Int("inserted", len(result.Inserted)),
		attribute.Int("updated", len(result.Updated)),
		attribute.Int("failed", len(result.Failed)),
	)
	if len(result.Failed) > 0 {
		span.SetStatus(codes.Error, "partial batch")
	}
	return result
}

// RefreshFinancialSummaries aggregates, normalizes and reconciles in one call.
// The returned rows are the normalized aggregation, not a re-read of the
// stored summaries. Only an aggregation failure is returned as an error; row
// failures live in the result.
func RefreshFinancialSummaries(ctx context.Context, db *gorm.DB, logger *logrus.Logger, filter reports.FinancialSummaryFilter) ([]map[string]any, *ReconcileResult, error) {
	rows, err := reports.GetFinancialSummaryReport(ctx, db, filter)
	if err != nil {
		if utils.ErrorKindOf(err) == utils.ErrorKindStorage {
			config.LogError(logger, "summaryReconciliation.go", "RefreshFinancialSummaries", "aggregate financial summary", filter, err)
		}
		return nil, nil, err
	}
	normalized := reports.NormalizeRows(rows)
	result := ReconcileFinancialSummaries(ctx, db, logger, normalized)
	return normalized, result, nil
}
