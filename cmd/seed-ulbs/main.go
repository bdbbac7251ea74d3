// seed-ulbs loads ULBs, and optionally their schemes, from CSV or XLSX files.
// Existing ULBs (matched by name) are reused, so the ULB file can be re-run.
//
// ULB file columns: name, city_type, latitude, longitude
// Scheme file columns: ulb_name, scheme_name, project_cost,
// approved_project_cost, sector, grant_type, city_type, date_of_approval
// (YYYY-MM-DD), financial_year, tender_floated, project_completion_status,
// financial_progress
//
// Usage:
//
//	go run ./cmd/seed-ulbs -ulbs ulbs.csv -schemes schemes.xlsx
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func main() {
	ulbFile := flag.String("ulbs", "", "Required: ULB file (.csv or .xlsx)")
	schemeFile := flag.String("schemes", "", "Optional: scheme file (.csv or .xlsx)")
	flag.Parse()

	if strings.TrimSpace(*ulbFile) == "" {
		fmt.Fprintln(os.Stderr, "-ulbs is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	db, err := config.ConnectDatabaseWithRetry(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database not initialized: %v\n", err)
		os.Exit(1)
	}
	defer config.CloseDatabase(db)

	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	ulbRows, err := readRecords(*ulbFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *ulbFile, err)
		os.Exit(1)
	}

	ulbIds := make(map[string]int, len(ulbRows))
	for i, rec := range ulbRows {
		input := models.NewUlb{
			Name:      rec.get("name"),
			CityType:  rec.get("city_type"),
			Latitude:  rec.decimalPtr("latitude"),
			Longitude: rec.decimalPtr("longitude"),
		}
		ulb, err := models.CreateUlb(ctx, db, &input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ulb row %d (%s): %v\n", i+2, input.Name, err)
			continue
		}
		ulbIds[strings.ToLower(ulb.Name)] = ulb.ID
	}
	fmt.Printf("Seeded %d ULBs\n", len(ulbIds))

	if strings.TrimSpace(*schemeFile) == "" {
		return
	}

	schemeRows, err := readRecords(*schemeFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *schemeFile, err)
		os.Exit(1)
	}

	created := 0
	for i, rec := range schemeRows {
		ulbName := rec.get("ulb_name")
		ulbId, ok := ulbIds[strings.ToLower(ulbName)]
		if !ok {
			fmt.Fprintf(os.Stderr, "scheme row %d: unknown ulb %q\n", i+2, ulbName)
			continue
		}
		input := models.NewScheme{
			UlbId:               ulbId,
			SchemeName:          rec.get("scheme_name"),
			ProjectCost:         utils.ParseDecimalOrZero(rec.get("project_cost")),
			ApprovedProjectCost: utils.ParseDecimalOrZero(rec.get("approved_project_cost")),
			Sector:              utils.NilIfBlank(rec.ptr("sector")),
			GrantType:           rec.get("grant_type"),
			CityType:            rec.get("city_type"),
			FinancialYear:       rec.get("financial_year"),
			TenderFloated:       rec.get("tender_floated"),
			Completed:           rec.get("project_completion_status"),
			FinancialProgress:   rec.decimalPtr("financial_progress"),
		}
		if v := rec.get("date_of_approval"); v != "" {
			approved, err := time.Parse("2006-01-02", v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "scheme row %d: invalid date_of_approval %q\n", i+2, v)
				continue
			}
			input.DateOfApproval = &approved
		}
		scheme, err := models.CreateScheme(ctx, db, &input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scheme row %d (%s): %v\n", i+2, input.SchemeName, err)
			continue
		}
		created++
		fmt.Printf("  %s %s\n", scheme.SchemeId, scheme.SchemeName)
	}
	fmt.Printf("Seeded %d schemes\n", created)
}

// record maps lower-cased header names to trimmed cell values.
type record map[string]string

func (r record) get(key string) string {
	return r[key]
}

func (r record) ptr(key string) *string {
	v, ok := r[key]
	if !ok {
		return nil
	}
	return &v
}

func (r record) decimalPtr(key string) *decimal.Decimal {
	d, err := utils.ParseDecimal(r[key])
	if err != nil {
		return nil
	}
	return &d
}

func readRecords(path string) ([]record, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, err
		}
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		rows, err = csv.NewReader(file).ReadAll()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	return toRecords(rows), nil
}

func toRecords(rows [][]string) []record {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	out := make([]record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(record, len(header))
		empty := true
		for i, h := range header {
			if i < len(row) {
				rec[h] = strings.TrimSpace(row[i])
				if rec[h] != "" {
					empty = false
				}
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}
