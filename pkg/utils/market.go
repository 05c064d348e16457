package utils

import (
	"time"
)

// PacificLocation is the timezone used for US market-open arithmetic.
var PacificLocation *time.Location

func init() {
	var err error
	PacificLocation, err = time.LoadLocation("America/Los_Angeles")
	if err != nil {
		PacificLocation = time.FixedZone("PST", -8*60*60)
	}
}

// marketOpenMinutes is 6:30 AM Pacific expressed as minutes after midnight.
const marketOpenMinutes = 6*60 + 30

// HoursSinceOpen returns the whole hours elapsed since the 6:30 AM Pacific
// market open, floored at 1 to avoid division blow-up near the open.
func HoursSinceOpen(now time.Time) float64 {
	local := now.In(PacificLocation)
	elapsed := float64(local.Hour()) - float64(marketOpenMinutes)/60.0
	if elapsed < 1 {
		return 1
	}
	return elapsed
}

// IsMarketOpen reports whether the regular US session is open (6:30 AM to
// 1:00 PM Pacific, weekdays).
func IsMarketOpen(now time.Time) bool {
	local := now.In(PacificLocation)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= marketOpenMinutes && minutes < 13*60
}
