package excel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"riskscore/domain/credit"
)

// Client column headers of a batch input sheet
var ClientColumns = []string{
	"age", "monthly_income", "dependents", "open_credit_lines", "real_estate_loans",
	"debt_ratio", "revolving_utilization_pct", "late_30_59", "late_60_89", "late_90_plus",
}

// ClientRow is one parsed input line. Line is the 1-based sheet row.
type ClientRow struct {
	Line  int
	Attrs credit.ClientAttributes
	Err   error
}

// ParseClients maps rows onto attributes. A missing column fails the whole
// sheet; a bad cell only fails its row.
func ParseClients(data *ExcelData) ([]ClientRow, error) {
	present := make(map[string]bool, len(data.Headers))
	for _, h := range data.Headers {
		present[strings.ToLower(h)] = true
	}
	var missing []string
	for _, c := range ClientColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	out := make([]ClientRow, 0, len(data.Rows))
	for i, raw := range data.Rows {
		row := ClientRow{Line: i + 2}
		row.Attrs, row.Err = parseClient(lowerKeys(raw))
		if row.Err == nil {
			row.Err = row.Attrs.Validate()
		}
		out = append(out, row)
	}
	return out, nil
}

func lowerKeys(raw RawRowData) RawRowData {
	out := make(RawRowData, len(raw))
	for k, v := range raw {
		out[strings.ToLower(k)] = v
	}
	return out
}

func parseClient(raw RawRowData) (credit.ClientAttributes, error) {
	var a credit.ClientAttributes
	var err error
	ints := []struct {
		col string
		dst *int
	}{
		{"age", &a.Age},
		{"dependents", &a.Dependents},
		{"open_credit_lines", &a.OpenCreditLines},
		{"real_estate_loans", &a.RealEstateLoans},
		{"late_30_59", &a.Late30to59},
		{"late_60_89", &a.Late60to89},
		{"late_90_plus", &a.Late90Plus},
	}
	for _, f := range ints {
		var v int64
		if v, err = parseInt(raw[f.col]); err != nil {
			return a, fmt.Errorf("%s: %w", f.col, err)
		}
		*f.dst = int(v)
	}
	if a.MonthlyIncome, err = parseInt(raw["monthly_income"]); err != nil {
		return a, fmt.Errorf("monthly_income: %w", err)
	}
	if a.DebtRatio, err = parseFloat(raw["debt_ratio"]); err != nil {
		return a, fmt.Errorf("debt_ratio: %w", err)
	}
	if a.RevolvingUtilizationPct, err = parseFloat(raw["revolving_utilization_pct"]); err != nil {
		return a, fmt.Errorf("revolving_utilization_pct: %w", err)
	}
	return a, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty cell")
	}
	return strconv.ParseFloat(s, 64)
}

// parseInt accepts "35" as well as the "35.0" spreadsheets often write
func parseInt(s string) (int64, error) {
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int64(f), nil
}
