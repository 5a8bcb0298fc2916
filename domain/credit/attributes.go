package credit

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"riskscore/internal/errors"

	"github.com/go-playground/validator/v10"
)

// ClientAttributes are the ten raw inputs of one scoring request. Values are
// never mutated; each interaction decodes a fresh one.
type ClientAttributes struct {
	Age                     int     `json:"age" validate:"gte=18,lte=100"`
	MonthlyIncome           int64   `json:"monthly_income" validate:"gte=0"`
	Dependents              int     `json:"dependents" validate:"gte=0,lte=10"`
	OpenCreditLines         int     `json:"open_credit_lines" validate:"gte=0,lte=30"`
	RealEstateLoans         int     `json:"real_estate_loans" validate:"gte=0,lte=10"`
	DebtRatio               float64 `json:"debt_ratio" validate:"gte=0,lte=10"`
	RevolvingUtilizationPct float64 `json:"revolving_utilization_pct" validate:"gte=0,lte=100"`
	Late30to59              int     `json:"late_30_59" validate:"gte=0,lte=10"`
	Late60to89              int     `json:"late_60_89" validate:"gte=0,lte=10"`
	Late90Plus              int     `json:"late_90_plus" validate:"gte=0,lte=10"`
}

// DefaultAttributes returns the profile the dashboard opens with
func DefaultAttributes() ClientAttributes {
	return ClientAttributes{
		Age:                     35,
		MonthlyIncome:           1500000,
		Dependents:              2,
		OpenCreditLines:         5,
		RealEstateLoans:         1,
		DebtRatio:               0.5,
		RevolvingUtilizationPct: 30.0,
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func attributeValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks every field against its documented domain. NaN fails every
// bound check and is rejected as well.
func (a ClientAttributes) Validate() error {
	err := attributeValidator().Struct(a)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Wrap(err, "attribute validation failed")
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return errors.ValidationError(strings.Join(msgs, "; "))
}

// CacheKey renders the full ordered ten-tuple. Floats use the shortest
// representation that round-trips, so distinct tuples never share a key.
func (a ClientAttributes) CacheKey() string {
	var b strings.Builder
	b.Grow(96)
	b.WriteString(strconv.Itoa(a.Age))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(a.MonthlyIncome, 10))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(a.Dependents))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(a.OpenCreditLines))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(a.RealEstateLoans))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(a.DebtRatio, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(a.RevolvingUtilizationPct, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(a.Late30to59))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(a.Late60to89))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(a.Late90Plus))
	return b.String()
}
