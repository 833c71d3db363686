package domain

// Thresholds holds the agronomic limits behind the irrigation label. They are
// configuration, not physics: the defaults come from the cacao growing
// guidance the system was tuned for, and callers may override any of them.
type Thresholds struct {
	// MoistureBelow is the soil-moisture percentage under which irrigation
	// is considered, given the other conditions hold.
	MoistureBelow float64
	// PHLow and PHHigh bound the pH band (exclusive on both ends) in which
	// irrigation is worthwhile.
	PHLow  float64
	PHHigh float64
}

// DefaultThresholds returns the production irrigation thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MoistureBelow: 40.0, PHLow: 5.5, PHHigh: 6.5}
}

// Label derives the binary irrigation label from the five documented inputs:
// 1 (irrigate) iff phosphorus and potassium are both present, moisture is
// below the threshold, and pH lies strictly inside the band. Pure function;
// identical inputs always yield the identical label.
func (t Thresholds) Label(moisture, ph float64, phosphorus, potassium bool) int {
	if phosphorus && potassium &&
		moisture < t.MoistureBelow &&
		ph > t.PHLow && ph < t.PHHigh {
		return 1
	}
	return 0
}

// LabelReading applies the thresholds to a decoded reading.
func (t Thresholds) LabelReading(r Reading) int {
	return t.Label(r.Moisture, r.PH, r.Phosphorus, r.Potassium)
}
