package workflow

import (
	"context"
	"io"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models/modeltest"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models/reports"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func storedSummary(t *testing.T, db *gorm.DB, ulbId int) *models.FinancialSummary {
	t.Helper()
	summary, err := models.GetFinancialSummaryByUlb(context.Background(), db, ulbId)
	if err != nil {
		t.Fatalf("GetFinancialSummaryByUlb(%d): %v", ulbId, err)
	}
	return summary
}

func summaryCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.FinancialSummary{}).Count(&count).Error; err != nil {
		t.Fatalf("count summaries: %v", err)
	}
	return count
}

func TestRefreshFinancialSummaries_InsertsThenUpdates(t *testing.T) {
	db := modeltest.Open(t)
	fx := modeltest.SeedFixture(t, db)
	ctx := context.Background()

	rows, result, err := RefreshFinancialSummaries(ctx, db, quietLogger(), reports.FinancialSummaryFilter{})
	if err != nil {
		t.Fatalf("RefreshFinancialSummaries error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 aggregation rows, got %d", len(rows))
	}
	if len(result.Inserted) != 3 || len(result.Updated) != 0 || len(result.Failed) != 0 {
		t.Fatalf("unexpected first result %+v", result)
	}
	if result.Err() != nil {
		t.Fatalf("expected no batch error, got %v", result.Err())
	}

	_, result, err = RefreshFinancialSummaries(ctx, db, quietLogger(), reports.FinancialSummaryFilter{})
	if err != nil {
		t.Fatalf("second RefreshFinancialSummaries error: %v", err)
	}
	if len(result.Inserted) != 0 || len(result.Updated) != 3 {
		t.Fatalf("unexpected second result %+v", result)
	}
	if got := summaryCount(t, db); got != 3 {
		t.Fatalf("expected one summary per ulb, got %d", got)
	}

	a := storedSummary(t, db, fx.A.ID)
	if a.ApprovedSchemes != 2 || a.ProjectCompleted != 1 || a.WorkInProgress != 1 {
		t.Fatalf("unexpected counts for A: %+v", a)
	}
	if !a.FundReleaseToUlbs.Equal(decimal.NewFromInt(150000)) || !a.Amount.Equal(decimal.NewFromInt(300000)) {
		t.Fatalf("unexpected amounts for A: fund=%s amount=%s", a.FundReleaseToUlbs, a.Amount)
	}
	if !a.FinancialProgressInPercentage.Equal(decimal.RequireFromString("62.5")) {
		t.Fatalf("expected 62.5 for A, got %s", a.FinancialProgressInPercentage)
	}

	c := storedSummary(t, db, fx.C.ID)
	if c.ApprovedSchemes != 0 || !c.Amount.IsZero() {
		t.Fatalf("expected zero aggregates for C, got %+v", c)
	}
}

func TestRefreshFinancialSummaries_FollowsSchemeCorrections(t *testing.T) {
	db := modeltest.Open(t)
	fx := modeltest.SeedFixture(t, db)
	ctx := context.Background()

	if _, _, err := RefreshFinancialSummaries(ctx, db, quietLogger(), reports.FinancialSummaryFilter{}); err != nil {
		t.Fatalf("RefreshFinancialSummaries error: %v", err)
	}

	s3 := fx.Schemes[2]
	progress := utils.NewFlexDecimal(decimal.NewFromInt(15000))
	yes := "yes"
	if _, _, err := models.CorrectScheme(ctx, db, s3.SchemeId, &models.SchemeCorrectionInput{
		FinancialProgress: progress,
		TenderFloated:     &yes,
	}); err != nil {
		t.Fatalf("CorrectScheme error: %v", err)
	}

	if _, _, err := RefreshFinancialSummaries(ctx, db, quietLogger(), reports.FinancialSummaryFilter{}); err != nil {
		t.Fatalf("RefreshFinancialSummaries error: %v", err)
	}
	b := storedSummary(t, db, fx.B.ID)
	if !b.Expenditure.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("expected expenditure 15000, got %s", b.Expenditure)
	}
	if !b.BalanceAmount.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("expected balance 15000, got %s", b.BalanceAmount)
	}
	if !b.FinancialProgressInPercentage.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected 25%%, got %s", b.FinancialProgressInPercentage)
	}
	if b.NumberOfTenderFloated != 1 || b.TenderNotFloated != 0 {
		t.Fatalf("unexpected tender counts %+v", b)
	}
}

func TestRefreshFinancialSummaries_KeepsManualFields(t *testing.T) {
	db := modeltest.Open(t)
	fx := modeltest.SeedFixture(t, db)
	ctx := context.Background()

	if _, _, err := RefreshFinancialSummaries(ctx, db, quietLogger(), reports.FinancialSummaryFilter{}); err != nil {
		t.Fatalf("RefreshFinancialSummaries error: %v", err)
	}
	fy := "2023-24"
	if _, _, err := models.UpdateFinancialSummaryFields(ctx, db, &models.FinancialSummaryFieldsInput{
		UlbId:           fx.A.ID,
		FinancialYear:   &fy,
		FirstInstalment: utils.NewFlexDecimal(decimal.NewFromInt(500)),
	}); err != nil {
		t.Fatalf("UpdateFinancialSummaryFields error: %v", err)
	}

	if _, _, err := RefreshFinancialSummaries(ctx, db, quietLogger(), reports.FinancialSummaryFilter{}); err != nil {
		t.Fatalf("RefreshFinancialSummaries error: %v", err)
	}
	a := storedSummary(t, db, fx.A.ID)
	if a.FinancialYear == nil || *a.FinancialYear != fy {
		t.Fatalf("financial_year lost: %v", a.FinancialYear)
	}
	if a.FirstInstalment == nil || !a.FirstInstalment.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("first_instalment lost: %v", a.FirstInstalment)
	}

	// a grant type filter stamps the manual field and narrows the aggregates
	if _, _, err := RefreshFinancialSummaries(ctx, db, quietLogger(), reports.FinancialSummaryFilter{GrantType: "tied"}); err != nil {
		t.Fatalf("RefreshFinancialSummaries error: %v", err)
	}
	a = storedSummary(t, db, fx.A.ID)
	if a.GrantType == nil || *a.GrantType != models.GrantTypeTied {
		t.Fatalf("expected grant_type tied, got %v", a.GrantType)
	}
	if a.ApprovedSchemes != 1 {
		t.Fatalf("expected tied-only aggregate, got approved_schemes=%d", a.ApprovedSchemes)
	}
	if a.FirstInstalment == nil || !a.FirstInstalment.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("first_instalment lost after filtered refresh: %v", a.FirstInstalment)
	}
	if c := storedSummary(t, db, fx.C.ID); c.GrantType != nil {
		t.Fatalf("ulb without tied schemes must not be touched, got %v", *c.GrantType)
	}
}

func TestReconcileFinancialSummaries_RowFailureDoesNotAbortBatch(t *testing.T) {
	db := modeltest.Open(t)
	fx := modeltest.SeedFixture(t, db)

	rows := []map[string]any{
		{"ulb_id": "abc", "approved_schemes": "1"},
		{"ulb_id": fx.A.ID, "approved_schemes": "4", "amount": "1000.50"},
		{"ulb_id": fx.B.ID, "grant_type": "loan"},
		{"approved_schemes": "1"},
	}
	result := ReconcileFinancialSummaries(context.Background(), db, quietLogger(), rows)

	if len(result.Inserted) != 1 || result.Inserted[0] != fx.A.ID {
		t.Fatalf("expected only A inserted, got %+v", result)
	}
	if len(result.Failed) != 3 {
		t.Fatalf("expected 3 failures, got %+v", result.Failed)
	}
	for i, want := range []int{0, 2, 3} {
		if result.Failed[i].Index != want {
			t.Fatalf("failure %d: expected index %d, got %d", i, want, result.Failed[i].Index)
		}
	}

	err := result.Err()
	if kind := utils.ErrorKindOf(err); err == nil || kind != utils.ErrorKindPartialBatch {
		t.Fatalf("expected partial batch error, got %v", err)
	}
	if !strings.Contains(err.Error(), "3 of 4 rows failed") {
		t.Fatalf("unexpected message %q", err.Error())
	}

	a := storedSummary(t, db, fx.A.ID)
	if a.ApprovedSchemes != 4 || !a.Amount.Equal(decimal.RequireFromString("1000.5")) {
		t.Fatalf("unexpected stored row %+v", a)
	}
	if got := summaryCount(t, db); got != 1 {
		t.Fatalf("expected 1 stored summary, got %d", got)
	}
}

func TestReconcileFinancialSummaries_StorageFailurePerRow(t *testing.T) {
	db := modeltest.Open(t)
	fx := modeltest.SeedFixture(t, db)
	if err := db.Migrator().DropTable(&models.FinancialSummary{}); err != nil {
		t.Fatalf("drop financial_summaries: %v", err)
	}

	result := ReconcileFinancialSummaries(context.Background(), db, quietLogger(), []map[string]any{
		{"ulb_id": fx.A.ID},
		{"ulb_id": fx.B.ID},
	})
	if len(result.Failed) != 2 || len(result.Inserted)+len(result.Updated) != 0 {
		t.Fatalf("expected every row to fail, got %+v", result)
	}
	if result.Failed[1].UlbId != fx.B.ID {
		t.Fatalf("expected failure to carry ulb id, got %+v", result.Failed[1])
	}
}

func TestReconcileFinancialSummaries_ConcurrentInsertBecomesUpdate(t *testing.T) {
	db := modeltest.Open(t)
	fx := modeltest.SeedFixture(t, db)

	// another refresh stores ULB A between the existence check and the insert
	raced := false
	err := db.Callback().Create().Before("gorm:create").Register("test:concurrent_summary", func(tx *gorm.DB) {
		summary, ok := tx.Statement.Dest.(*models.FinancialSummary)
		if !ok || summary.UlbId != fx.A.ID || raced {
			return
		}
		raced = true
		competing := &models.FinancialSummary{UlbId: fx.A.ID, ApprovedSchemes: 99}
		if err := tx.Session(&gorm.Session{NewDB: true}).Create(competing).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, result, err := RefreshFinancialSummaries(context.Background(), db, quietLogger(), reports.FinancialSummaryFilter{})
	if err != nil {
		t.Fatalf("RefreshFinancialSummaries error: %v", err)
	}
	if !raced {
		t.Fatalf("competing insert never ran")
	}
	if len(result.Failed) != 0 {
		t.Fatalf("expected no failures, got %+v", result.Failed)
	}
	if len(result.Updated) != 1 || result.Updated[0] != fx.A.ID {
		t.Fatalf("expected A under updated, got %+v", result)
	}
	if len(result.Inserted) != 2 {
		t.Fatalf("expected B and C inserted, got %+v", result)
	}

	a := storedSummary(t, db, fx.A.ID)
	if a.ApprovedSchemes != 2 || !a.Amount.Equal(decimal.NewFromInt(300000)) {
		t.Fatalf("expected incoming aggregates to win, got %+v", a)
	}
	if got := summaryCount(t, db); got != 3 {
		t.Fatalf("expected one summary per ulb, got %d", got)
	}
}

func TestReconcileFinancialSummaries_CanonicalFinancialYear(t *testing.T) {
	db := modeltest.Open(t)
	fx := modeltest.SeedFixture(t, db)

	result := ReconcileFinancialSummaries(context.Background(), db, quietLogger(), []map[string]any{
		{"ulb_id": fx.A.ID, "financial_year": "2023-2024"},
		{"ulb_id": fx.B.ID, "financial_year": "2023"},
	})
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures %+v", result.Failed)
	}
	for _, id := range []int{fx.A.ID, fx.B.ID} {
		got := storedSummary(t, db, id)
		if got.FinancialYear == nil || *got.FinancialYear != "2023-24" {
			t.Fatalf("ulb %d: expected 2023-24, got %v", id, got.FinancialYear)
		}
	}
}
