package reports

import (
	"bytes"
	"fmt"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/xuri/excelize/v2"
)

const financialSummarySheet = "Financial Summary"

type excelColumn struct {
	key     string
	heading string
	numeric bool
}

var financialSummaryColumns = []excelColumn{
	{"ulb_id", "ULB ID", true},
	{"ulb_name", "ULB Name", false},
	{"approved_schemes", "Approved Schemes", true},
	{"fund_release_to_ulbs", "Fund Release To ULBs", true},
	{"amount", "Amount", true},
	{"project_completed", "Project Completed", true},
	{"expenditure", "Expenditure", true},
	{"balance_amount", "Balance Amount", true},
	{"financial_progress_in_percentage", "Financial Progress (%)", true},
	{"number_of_tender_floated", "Tender Floated", true},
	{"tender_not_floated", "Tender Not Floated", true},
	{"work_in_progress", "Work In Progress", true},
}

// FinancialSummaryWorkbook renders normalized aggregation rows as an xlsx
// workbook, one row per ULB in input order.
func FinancialSummaryWorkbook(rows []map[string]any) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", financialSummarySheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	// Add headers
	for i, col := range financialSummaryColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(financialSummarySheet, cell, col.heading); err != nil {
			return nil, err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(financialSummaryColumns), 1)
	if err := f.SetCellStyle(financialSummarySheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	// Add data
	for r, row := range rows {
		for c, col := range financialSummaryColumns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			value := row[col.key]
			if value == nil {
				continue
			}
			if col.numeric {
				d, err := utils.ParseDecimal(value)
				if err == nil {
					value = d.InexactFloat64()
				}
			} else {
				value = fmt.Sprint(value)
			}
			if err := f.SetCellValue(financialSummarySheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	return f.WriteToBuffer()
}
