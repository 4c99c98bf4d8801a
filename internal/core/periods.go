package core

import (
	"os"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// epsilon absorbs NUMERIC(14,2) rounding in every balance comparison.
var epsilon = decimal.New(1, -2) // 0.01

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// businessLocation is the timezone accounting periods are bucketed in.
// Defaults to the business's local zone; override with BUSINESS_TZ.
var businessLocation = loadBusinessLocation()

func loadBusinessLocation() *time.Location {
	name := os.Getenv("BUSINESS_TZ")
	if name == "" {
		name = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PeriodFromDate derives the YYYY-MM accounting period for a date,
// evaluated in the business-local timezone.
func PeriodFromDate(t time.Time) string {
	return t.In(businessLocation).Format("2006-01")
}

// ValidPeriod reports whether s is a well-formed YYYY-MM period.
func ValidPeriod(s string) bool {
	return periodPattern.MatchString(s)
}
