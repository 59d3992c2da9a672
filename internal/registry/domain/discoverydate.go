package domain

import (
	"strconv"

	dErrors "bvcregistry/pkg/domain-errors"
)

// Discovery dates accept exactly two shapes: YYYY or YYYY-MM-DD. The year
// lower bound predates every tracked platform; the day caps are per-month
// with February fixed at 29 regardless of leap year, a deliberate leniency
// callers depend on.
const minDiscoveryYear = 1990

var maxDayOfMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// ValidateDiscoveryDate checks date and returns its four-digit year.
// Rejects loudly: this guards writes, where a bad date must not reach the
// ledger.
func ValidateDiscoveryDate(date string) (int, error) {
	switch len(date) {
	case 4:
		year, err := parseYear(date)
		if err != nil {
			return 0, err
		}
		return year, nil
	case 10:
		if date[4] != '-' || date[7] != '-' {
			return 0, dErrors.Newf(dErrors.CodeBadRequest, "discoveryDate: %q must be YYYY or YYYY-MM-DD", date)
		}
		year, err := parseYear(date[:4])
		if err != nil {
			return 0, err
		}
		month, err := parseDigits(date[5:7])
		if err != nil || month < 1 || month > 12 {
			return 0, dErrors.Newf(dErrors.CodeBadRequest, "discoveryDate: month in %q out of range", date)
		}
		day, err := parseDigits(date[8:])
		if err != nil || day < 1 || day > maxDayOfMonth[month] {
			return 0, dErrors.Newf(dErrors.CodeBadRequest, "discoveryDate: day in %q out of range", date)
		}
		return year, nil
	default:
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "discoveryDate: %q must be YYYY or YYYY-MM-DD", date)
	}
}

// ExtractYear returns the year of a discovery date, or 0 for empty or
// malformed input. Best effort by design: read paths decorate listings with
// it and must not fail on a record whose date a newer rule set rejects.
func ExtractYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < minDiscoveryYear {
		return 0
	}
	return year
}

func parseYear(s string) (int, error) {
	year, err := parseDigits(s)
	if err != nil || year < minDiscoveryYear || year > 9999 {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "discoveryDate: year %q out of range (1990-9999)", s)
	}
	return year, nil
}

// parseDigits converts an ASCII-digit string. Unlike strconv.Atoi it rejects
// signs and whitespace, so "+9" is not a valid day.
func parseDigits(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, dErrors.Newf(dErrors.CodeBadRequest, "discoveryDate: %q is not numeric", s)
		}
	}
	return strconv.Atoi(s)
}
