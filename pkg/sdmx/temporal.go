package sdmx

import (
	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

// Periodicity labels used by BADEA.
const (
	PeriodicityMonthly      = "Mensual"
	PeriodicityQuarterly    = "Trimestral"
	PeriodicityAnnual       = "Anual"
	PeriodicityMonthlyINE   = "Mensual  Fuente: Instituto Nacional de Estadística"
	temporalYearLength      = 4
	temporalPeriodSeparator = "-"
)

// subAnnualPeriodicities are the labels whose time codes are written as
// YYYYPP and must become YYYY-PP.
var subAnnualPeriodicities = map[string]struct{}{
	PeriodicityMonthly:    {},
	PeriodicityQuarterly:  {},
	PeriodicityMonthlyINE: {},
}

// IsSubAnnual reports whether periodicity needs temporal normalization.
func IsSubAnnual(periodicity string) bool {
	_, ok := subAnnualPeriodicities[periodicity]
	return ok
}

// FormatTemporal rewrites time codes for sub-annual periodicities by
// inserting a separator after the year ("202303" -> "2023-03"). Values of
// any other periodicity are returned unchanged. Under a sub-annual
// periodicity a value that is not a string of at least four characters is a
// malformed cell. The input slice is not modified.
func FormatTemporal(values []interface{}, periodicity string) ([]interface{}, error) {
	out := make([]interface{}, len(values))
	if !IsSubAnnual(periodicity) {
		copy(out, values)
		return out, nil
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(errors.ErrorTypeMalformedCell, "temporal value is not text").
				WithDetail("row", i).
				WithDetail("value", v)
		}
		r := []rune(s)
		if len(r) < temporalYearLength {
			return nil, errors.New(errors.ErrorTypeMalformedCell, "temporal value is shorter than a year").
				WithDetail("row", i).
				WithDetail("value", s)
		}
		out[i] = string(r[:temporalYearLength]) + temporalPeriodSeparator + string(r[temporalYearLength:])
	}
	return out, nil
}
