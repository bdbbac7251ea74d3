package reports

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestFinancialSummaryWorkbook(t *testing.T) {
	rows := []map[string]any{
		{"ulb_id": "1", "ulb_name": "Ahmedabad", "approved_schemes": "2", "amount": "300000", "financial_progress_in_percentage": 62.5},
		{"ulb_id": "3", "ulb_name": "Chhindwara", "approved_schemes": "0"},
	}

	buf, err := FinancialSummaryWorkbook(rows)
	if err != nil {
		t.Fatalf("FinancialSummaryWorkbook error: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader error: %v", err)
	}
	defer f.Close()

	sheetRows, err := f.GetRows(financialSummarySheet)
	if err != nil {
		t.Fatalf("GetRows error: %v", err)
	}
	if len(sheetRows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(sheetRows))
	}
	if sheetRows[0][0] != "ULB ID" || sheetRows[0][1] != "ULB Name" {
		t.Fatalf("unexpected header %v", sheetRows[0])
	}
	if sheetRows[1][1] != "Ahmedabad" || sheetRows[2][1] != "Chhindwara" {
		t.Fatalf("rows out of order: %v", sheetRows)
	}

	amount, err := f.GetCellValue(financialSummarySheet, "E2")
	if err != nil {
		t.Fatalf("GetCellValue error: %v", err)
	}
	if amount != "300000" {
		t.Fatalf("expected amount 300000, got %q", amount)
	}
	pct, _ := f.GetCellValue(financialSummarySheet, "I2")
	if pct != "62.5" {
		t.Fatalf("expected percentage 62.5, got %q", pct)
	}
}
