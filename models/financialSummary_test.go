package models_test

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models/modeltest"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func seedSummary(t *testing.T, db *gorm.DB) *models.Ulb {
	t.Helper()
	ulb := modeltest.SeedUlb(t, db, "Gwalior", models.CityTypeNonMillion)
	fy := "2023-24"
	first := decimal.NewFromInt(100)
	grant := models.GrantTypeUntied
	row := models.FinancialSummary{
		UlbId:           ulb.ID,
		ApprovedSchemes: 2,
		FinancialYear:   &fy,
		FirstInstalment: &first,
		GrantType:       &grant,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	return ulb
}

func TestUpdateFinancialSummaryFields_StoresCanonicalFinancialYear(t *testing.T) {
	for _, in := range []string{"2024", "2024-25", "2024-2025", " 2024 - 25 "} {
		t.Run(in, func(t *testing.T) {
			db := modeltest.Open(t)
			ulb := seedSummary(t, db)

			summary, fields, err := models.UpdateFinancialSummaryFields(context.Background(), db, &models.FinancialSummaryFieldsInput{
				UlbId:         ulb.ID,
				FinancialYear: strPtr(in),
			})
			if err != nil {
				t.Fatalf("UpdateFinancialSummaryFields error: %v", err)
			}
			if summary.FinancialYear == nil || *summary.FinancialYear != "2024-25" {
				t.Fatalf("expected stored 2024-25, got %v", summary.FinancialYear)
			}
			if fields["financial_year"] != "2024-25" {
				t.Fatalf("expected written 2024-25, got %#v", fields["financial_year"])
			}
		})
	}
}

func TestUpdateFinancialSummaryFields_OverwritesWholeGroup(t *testing.T) {
	db := modeltest.Open(t)
	ulb := seedSummary(t, db)

	summary, fields, err := models.UpdateFinancialSummaryFields(context.Background(), db, &models.FinancialSummaryFieldsInput{
		UlbId:            ulb.ID,
		SecondInstalment: flex("2,500.50"),
		GrantType:        strPtr("Tied"),
	})
	if err != nil {
		t.Fatalf("UpdateFinancialSummaryFields error: %v", err)
	}
	if summary.FinancialYear != nil {
		t.Fatalf("expected financial_year NULL, got %q", *summary.FinancialYear)
	}
	if summary.FirstInstalment != nil {
		t.Fatalf("expected first_instalment NULL, got %s", summary.FirstInstalment)
	}
	if summary.SecondInstalment == nil || !summary.SecondInstalment.Equal(decimal.RequireFromString("2500.5")) {
		t.Fatalf("expected second_instalment 2500.5, got %v", summary.SecondInstalment)
	}
	if summary.GrantType == nil || *summary.GrantType != models.GrantTypeTied {
		t.Fatalf("expected grant_type tied, got %v", summary.GrantType)
	}
	if summary.ApprovedSchemes != 2 {
		t.Fatalf("aggregate columns must not change, approved_schemes=%d", summary.ApprovedSchemes)
	}
	if len(fields) != 5 {
		t.Fatalf("expected all five manual columns written, got %v", fields)
	}
}

func TestUpdateFinancialSummaryFields_MissingRow(t *testing.T) {
	db := modeltest.Open(t)
	seedSummary(t, db)

	_, _, err := models.UpdateFinancialSummaryFields(context.Background(), db, &models.FinancialSummaryFieldsInput{
		UlbId:         99999,
		FinancialYear: strPtr("2023-24"),
	})
	if kind := utils.ErrorKindOf(err); err == nil || kind != utils.ErrorKindNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}

	var count int64
	if err := db.Model(&models.FinancialSummary{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected no row created, found %d rows", count)
	}
}

func TestUpdateFinancialSummaryFields_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		input models.FinancialSummaryFieldsInput
	}{
		{"missing ulb", models.FinancialSummaryFieldsInput{}},
		{"bad grant type", models.FinancialSummaryFieldsInput{UlbId: 1, GrantType: strPtr("loan")}},
		{"bad financial year", models.FinancialSummaryFieldsInput{UlbId: 1, FinancialYear: strPtr("2023-26")}},
		{"negative interest", models.FinancialSummaryFieldsInput{UlbId: 1, InterestAmount: flex("-10")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := modeltest.Open(t)
			ulb := seedSummary(t, db)
			input := tc.input
			if input.UlbId != 0 {
				input.UlbId = ulb.ID
			}
			_, _, err := models.UpdateFinancialSummaryFields(context.Background(), db, &input)
			if kind := utils.ErrorKindOf(err); err == nil || kind != utils.ErrorKindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			stored, err := models.GetFinancialSummaryByUlb(context.Background(), db, ulb.ID)
			if err != nil {
				t.Fatalf("GetFinancialSummaryByUlb error: %v", err)
			}
			if stored.FinancialYear == nil || *stored.FinancialYear != "2023-24" {
				t.Fatalf("expected row unchanged, financial_year=%v", stored.FinancialYear)
			}
		})
	}
}

func TestListFinancialSummaries_FiltersByGrantType(t *testing.T) {
	db := modeltest.Open(t)
	seedSummary(t, db)

	rows, err := models.ListFinancialSummaries(context.Background(), db, strPtr("UNTIED"))
	if err != nil {
		t.Fatalf("ListFinancialSummaries error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	rows, err = models.ListFinancialSummaries(context.Background(), db, strPtr("tied"))
	if err != nil {
		t.Fatalf("ListFinancialSummaries error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}
