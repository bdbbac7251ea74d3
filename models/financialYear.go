package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
)

var financialYearPattern = regexp.MustCompile(`^(\d{4})(?:\s*-\s*(\d{2}|\d{4}))?$`)

// ParseFinancialYear accepts "2023", "2023-24" and "2023-2024" and returns the
// starting calendar year.
func ParseFinancialYear(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	m := financialYearPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, utils.NewValidationError("invalid financial_year %q", raw)
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year < 1900 || year > 2200 {
		return 0, utils.NewValidationError("invalid financial_year %q", raw)
	}
	if m[2] != "" {
		end, _ := strconv.Atoi(m[2])
		if len(m[2]) == 2 {
			end += (year / 100) * 100
			if end < year {
				end += 100
			}
		}
		if end != year+1 {
			return 0, utils.NewValidationError("invalid financial_year %q", raw)
		}
	}
	return year, nil
}

// FormatFinancialYear is the stored form of a financial year, "2023-24".
func FormatFinancialYear(year int) string {
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}

// CanonicalFinancialYear parses any accepted spelling and returns the stored
// form, so "2023", "2023-24" and "2023-2024" compare equal.
func CanonicalFinancialYear(raw string) (string, error) {
	year, err := ParseFinancialYear(raw)
	if err != nil {
		return "", err
	}
	return FormatFinancialYear(year), nil
}

// CalendarYearRange is the half-open range [Jan 1 year, Jan 1 year+1) in UTC.
func CalendarYearRange(year int) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}
