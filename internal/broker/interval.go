package broker

// Interval is a historical-data request window: a lookback duration paired
// with a bar size, in the broker's own notation.
type Interval struct {
	Duration string
	BarSize  string
}

// Common historical-data intervals.
var (
	OneDay1Sec    = Interval{"1 D", "1 sec"}
	OneDay5Sec    = Interval{"1 D", "5 secs"}
	OneDay30Sec   = Interval{"1 D", "30 secs"}
	OneDay1Min    = Interval{"1 D", "1 min"}
	OneDay5Min    = Interval{"1 D", "5 mins"}
	OneDay30Min   = Interval{"1 D", "30 mins"}
	OneWeek1Min   = Interval{"1 W", "1 min"}
	OneWeek1Hour  = Interval{"1 W", "1 hour"}
	OneMonth1Hour = Interval{"1 M", "1 hour"}
	OneMonth1Day  = Interval{"1 M", "1 day"}
	OneYear1Day   = Interval{"1 Y", "1 day"}
	OneYear1Week  = Interval{"1 Y", "1 week"}
)
