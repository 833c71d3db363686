package forecast

// Period is one of the four six-hour blocks a day is scored in.
type Period int

const (
	NightEarly Period = iota // 00:00 .. 05:59
	Morning                  // 06:00 .. 11:59
	Afternoon                // 12:00 .. 17:59
	NightLate                // 18:00 .. 23:59

	numPeriods = 4
)

var periodNames = [numPeriods]string{"night-early", "morning", "afternoon", "night-late"}

func (p Period) String() string {
	if p < 0 || int(p) >= numPeriods {
		return "unknown"
	}
	return periodNames[p]
}

// PeriodOf buckets an hour of day (0..23).
func PeriodOf(hour int) Period {
	switch {
	case hour < 6:
		return NightEarly
	case hour < 12:
		return Morning
	case hour < 18:
		return Afternoon
	default:
		return NightLate
	}
}
