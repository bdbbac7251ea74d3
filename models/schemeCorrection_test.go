package models_test

import (
	"context"
	"strconv"
	"testing"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models/modeltest"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func itoa(i int) string { return strconv.Itoa(i) }

func flex(s string) *utils.FlexDecimal {
	return utils.NewFlexDecimal(decimal.RequireFromString(s))
}

func seedCorrectionScheme(t *testing.T, db *gorm.DB, approved string) *models.Scheme {
	t.Helper()
	ulb := modeltest.SeedUlb(t, db, "Indore", models.CityTypeMillionPlus)
	return modeltest.SeedScheme(t, db, ulb.ID, modeltest.SchemeSpec{
		Name:         "Water Supply Phase 1",
		ProjectCost:  "100000",
		ApprovedCost: approved,
		Sector:       models.SectorWater,
		GrantType:    models.GrantTypeTied,
		CityType:     models.CityTypeMillionPlus,
		Approved:     "2023-05-10",
	})
}

func TestCorrectScheme_DerivesFinancialProgressPercentage(t *testing.T) {
	db := modeltest.Open(t)
	scheme := seedCorrectionScheme(t, db, "200000")

	updated, changes, err := models.CorrectScheme(context.Background(), db, scheme.SchemeId, &models.SchemeCorrectionInput{
		FinancialProgress: flex("50000"),
	})
	if err != nil {
		t.Fatalf("CorrectScheme error: %v", err)
	}
	if !updated.FinancialProgress.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("expected financial_progress 50000, got %s", updated.FinancialProgress)
	}
	if !updated.FinancialProgressInPercentage.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected financial_progress_in_percentage 25, got %s", updated.FinancialProgressInPercentage)
	}
	if _, ok := changes["financial_progress_in_percentage"]; !ok {
		t.Fatalf("expected derived percentage in changes, got %v", changes)
	}
}

func TestCorrectScheme_RoundsPercentage(t *testing.T) {
	db := modeltest.Open(t)
	scheme := seedCorrectionScheme(t, db, "300000")

	updated, _, err := models.CorrectScheme(context.Background(), db, scheme.SchemeId, &models.SchemeCorrectionInput{
		FinancialProgress: flex("100000"),
	})
	if err != nil {
		t.Fatalf("CorrectScheme error: %v", err)
	}
	if !updated.FinancialProgressInPercentage.Equal(decimal.RequireFromString("33.33")) {
		t.Fatalf("expected 33.33, got %s", updated.FinancialProgressInPercentage)
	}
}

func TestCorrectScheme_CompletedForcesHundredPercent(t *testing.T) {
	// an out-of-range percentage is overridden, not rejected, once completed
	for _, pct := range []string{"40", "140", "-5"} {
		t.Run(pct, func(t *testing.T) {
			db := modeltest.Open(t)
			scheme := seedCorrectionScheme(t, db, "200000")

			updated, _, err := models.CorrectScheme(context.Background(), db, scheme.SchemeId, &models.SchemeCorrectionInput{
				ProjectCompletionStatus:             strPtr("yes"),
				ProjectCompletionStatusInPercentage: flex(pct),
			})
			if err != nil {
				t.Fatalf("CorrectScheme error: %v", err)
			}
			if updated.ProjectCompletionStatus != models.Yes {
				t.Fatalf("expected status yes, got %q", updated.ProjectCompletionStatus)
			}
			if !updated.ProjectCompletionStatusInPercentage.Equal(decimal.NewFromInt(100)) {
				t.Fatalf("expected 100, got %s", updated.ProjectCompletionStatusInPercentage)
			}
		})
	}
}

func TestCorrectScheme_ZeroApprovedCostLeavesRecordUnchanged(t *testing.T) {
	db := modeltest.Open(t)
	scheme := seedCorrectionScheme(t, db, "0")

	_, _, err := models.CorrectScheme(context.Background(), db, scheme.SchemeId, &models.SchemeCorrectionInput{
		Sector:            strPtr("sanitation"),
		FinancialProgress: flex("1000"),
	})
	if kind := utils.ErrorKindOf(err); err == nil || kind != utils.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	stored, err := models.GetSchemeBySchemeId(context.Background(), db, scheme.SchemeId)
	if err != nil {
		t.Fatalf("GetSchemeBySchemeId error: %v", err)
	}
	if stored.Sector == nil || *stored.Sector != models.SectorWater {
		t.Fatalf("expected sector to stay water, got %v", stored.Sector)
	}
	if !stored.FinancialProgress.IsZero() {
		t.Fatalf("expected financial_progress to stay 0, got %s", stored.FinancialProgress)
	}
}

func TestCorrectScheme_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		input models.SchemeCorrectionInput
	}{
		{"empty payload", models.SchemeCorrectionInput{}},
		{"unknown sector", models.SchemeCorrectionInput{Sector: strPtr("roads")}},
		{"blank sector", models.SchemeCorrectionInput{Sector: strPtr("  ")}},
		{"bad status", models.SchemeCorrectionInput{ProjectCompletionStatus: strPtr("done")}},
		{"bad tender", models.SchemeCorrectionInput{TenderFloated: strPtr("maybe")}},
		{"percentage over 100", models.SchemeCorrectionInput{ProjectCompletionStatusInPercentage: flex("120")}},
		{"percentage over 100 while not completed", models.SchemeCorrectionInput{ProjectCompletionStatus: strPtr("no"), ProjectCompletionStatusInPercentage: flex("140")}},
		{"negative progress", models.SchemeCorrectionInput{FinancialProgress: flex("-1")}},
		{"negative progress percentage", models.SchemeCorrectionInput{FinancialProgressInPercentage: flex("-5")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := modeltest.Open(t)
			scheme := seedCorrectionScheme(t, db, "200000")
			input := tc.input
			_, _, err := models.CorrectScheme(context.Background(), db, scheme.SchemeId, &input)
			if err == nil {
				t.Fatalf("expected error")
			}
			if kind := utils.ErrorKindOf(err); kind != utils.ErrorKindValidation {
				t.Fatalf("expected validation error, got %s (%v)", kind, err)
			}
		})
	}
}

func TestCorrectScheme_UnknownScheme(t *testing.T) {
	db := modeltest.Open(t)
	_, _, err := models.CorrectScheme(context.Background(), db, "sch-404-1", &models.SchemeCorrectionInput{
		TenderFloated: strPtr("yes"),
	})
	if kind := utils.ErrorKindOf(err); err == nil || kind != utils.ErrorKindNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCorrectScheme_PartialUpdateKeepsOtherFields(t *testing.T) {
	db := modeltest.Open(t)
	scheme := seedCorrectionScheme(t, db, "200000")

	updated, changes, err := models.CorrectScheme(context.Background(), db, scheme.SchemeId, &models.SchemeCorrectionInput{
		TenderFloated: strPtr("Yes"),
	})
	if err != nil {
		t.Fatalf("CorrectScheme error: %v", err)
	}
	if updated.TenderFloated != models.Yes {
		t.Fatalf("expected tender yes, got %q", updated.TenderFloated)
	}
	if updated.Sector == nil || *updated.Sector != models.SectorWater {
		t.Fatalf("expected sector untouched, got %v", updated.Sector)
	}
	if !updated.ApprovedProjectCost.Equal(decimal.NewFromInt(200000)) {
		t.Fatalf("expected approved cost untouched, got %s", updated.ApprovedProjectCost)
	}
	if _, ok := changes["sector"]; ok {
		t.Fatalf("sector should not be in changes: %v", changes)
	}
}

func TestNextSchemeId(t *testing.T) {
	db := modeltest.Open(t)
	ulb := modeltest.SeedUlb(t, db, "Bhopal", models.CityTypeMillionPlus)

	first, err := models.NextSchemeId(context.Background(), db, ulb.ID)
	if err != nil {
		t.Fatalf("NextSchemeId error: %v", err)
	}
	if want := "sch-" + itoa(ulb.ID) + "-1"; first != want {
		t.Fatalf("expected %s, got %s", want, first)
	}

	for i := 0; i < 2; i++ {
		modeltest.SeedScheme(t, db, ulb.ID, modeltest.SchemeSpec{
			Name:      "scheme",
			GrantType: models.GrantTypeTied,
			CityType:  models.CityTypeMillionPlus,
		})
	}
	next, err := models.NextSchemeId(context.Background(), db, ulb.ID)
	if err != nil {
		t.Fatalf("NextSchemeId error: %v", err)
	}
	if want := "sch-" + itoa(ulb.ID) + "-3"; next != want {
		t.Fatalf("expected %s, got %s", want, next)
	}
}
