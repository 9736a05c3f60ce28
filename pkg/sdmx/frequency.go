package sdmx

import (
	"sort"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

// frequencyCodes maps BADEA periodicity labels to SDMX FREQ codes.
var frequencyCodes = map[string]string{
	PeriodicityMonthly: "M",
	PeriodicityAnnual:  "A",
}

// FrequencyCode returns the SDMX frequency code of periodicity.
func FrequencyCode(periodicity string) (string, error) {
	code, ok := frequencyCodes[periodicity]
	if !ok {
		known := make([]string, 0, len(frequencyCodes))
		for k := range frequencyCodes {
			known = append(known, k)
		}
		sort.Strings(known)
		return "", errors.New(errors.ErrorTypeUnknownPeriodicity, "no frequency code for periodicity").
			WithDetail("periodicity", periodicity).
			WithDetail("known", known)
	}
	return code, nil
}

// InsertFrequency returns a copy of t with a constant FREQ column derived
// from periodicity.
func InsertFrequency(t *Table, periodicity string) (*Table, error) {
	code, err := FrequencyCode(periodicity)
	if err != nil {
		return nil, err
	}
	return t.withConstant(ColumnFreq, code)
}
