// Package modeltest opens a migrated in-memory SQLite database for tests.
package modeltest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// Open returns a fresh database per call, closed when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// one connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	return db
}

func SeedUlb(t testing.TB, db *gorm.DB, name string, cityType models.CityType) *models.Ulb {
	t.Helper()
	ulb, err := models.CreateUlb(context.Background(), db, &models.NewUlb{Name: name, CityType: string(cityType)})
	if err != nil {
		t.Fatalf("CreateUlb(%s): %v", name, err)
	}
	return ulb
}

// SchemeSpec is the short form of a scheme used by tests.
type SchemeSpec struct {
	Name              string
	ProjectCost       string
	ApprovedCost      string
	FinancialProgress string
	Sector            models.Sector
	GrantType         models.GrantType
	CityType          models.CityType
	Approved          string // YYYY-MM-DD
	TenderFloated     bool
	Completed         bool
}

func SeedScheme(t testing.TB, db *gorm.DB, ulbId int, spec SchemeSpec) *models.Scheme {
	t.Helper()

	input := models.NewScheme{
		UlbId:               ulbId,
		SchemeName:          spec.Name,
		ProjectCost:         decimal.RequireFromString(orZero(spec.ProjectCost)),
		ApprovedProjectCost: decimal.RequireFromString(orZero(spec.ApprovedCost)),
		GrantType:           string(spec.GrantType),
		CityType:            string(spec.CityType),
		TenderFloated:       yesNo(spec.TenderFloated),
		Completed:           yesNo(spec.Completed),
	}
	if spec.Sector != "" {
		sector := string(spec.Sector)
		input.Sector = &sector
	}
	if spec.FinancialProgress != "" {
		fp := decimal.RequireFromString(spec.FinancialProgress)
		input.FinancialProgress = &fp
	}
	if spec.Approved != "" {
		approved, err := time.Parse("2006-01-02", spec.Approved)
		if err != nil {
			t.Fatalf("bad Approved date %q: %v", spec.Approved, err)
		}
		input.DateOfApproval = &approved
	}

	scheme, err := models.CreateScheme(context.Background(), db, &input)
	if err != nil {
		t.Fatalf("CreateScheme(%s): %v", spec.Name, err)
	}
	return scheme
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return string(models.Yes)
	}
	return string(models.No)
}

// Fixture is three ULBs: A with two schemes, B with one and C with none.
type Fixture struct {
	A, B, C *models.Ulb
	Schemes []*models.Scheme
}

// SeedFixture loads the standard report fixture:
//
//	A: s1 water/tied/million-plus approved 2023-05-10, tender floated, progress 50000 of 200000
//	   s2 sanitation/untied/million-plus approved 2022-03-01, completed, progress 100000 of 100000
//	B: s3 water/tied/non-million approved 2023-07-01, no tender, no progress
//	C: no schemes
func SeedFixture(t testing.TB, db *gorm.DB) Fixture {
	t.Helper()
	fx := Fixture{
		A: SeedUlb(t, db, "Ahmedabad", models.CityTypeMillionPlus),
		B: SeedUlb(t, db, "Bhavnagar", models.CityTypeNonMillion),
		C: SeedUlb(t, db, "Chhindwara", models.CityTypeNonMillion),
	}
	fx.Schemes = []*models.Scheme{
		SeedScheme(t, db, fx.A.ID, SchemeSpec{
			Name: "s1", ProjectCost: "100000", ApprovedCost: "200000", FinancialProgress: "50000",
			Sector: models.SectorWater, GrantType: models.GrantTypeTied, CityType: models.CityTypeMillionPlus,
			Approved: "2023-05-10", TenderFloated: true,
		}),
		SeedScheme(t, db, fx.A.ID, SchemeSpec{
			Name: "s2", ProjectCost: "50000", ApprovedCost: "100000", FinancialProgress: "100000",
			Sector: models.SectorSanitation, GrantType: models.GrantTypeUntied, CityType: models.CityTypeMillionPlus,
			Approved: "2022-03-01", Completed: true,
		}),
		SeedScheme(t, db, fx.B.ID, SchemeSpec{
			Name: "s3", ProjectCost: "30000", ApprovedCost: "60000",
			Sector: models.SectorWater, GrantType: models.GrantTypeTied, CityType: models.CityTypeNonMillion,
			Approved: "2023-07-01",
		}),
	}
	return fx
}
