package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// Reading is one decoded sensor observation. Only the fields present in the
// telemetry line grammar appear here; temperature and the other optional
// channels enter the system through the bulk loader, not the serial stream.
type Reading struct {
	Phosphorus bool    `json:"phosphorus"`
	Potassium  bool    `json:"potassium"`
	Moisture   float64 `json:"moisture"`
	PH         float64 `json:"ph"`
	RelayOn    bool    `json:"relay_on"`
}

// NPK returns the persisted nutrient-pair encoding for the reading.
func (r Reading) NPK() string {
	return EncodeNPK(r.Phosphorus, r.Potassium)
}

// DecodeError reports a telemetry line that did not match the grammar.
// It carries the raw line so the caller can log it; the caller decides
// whether to skip, log, or abort.
type DecodeError struct {
	Line string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unrecognized telemetry line: %q", e.Line)
}

var npkRe = regexp.MustCompile(`^Fósforo:([01]),Potássio:([01])$`)

// EncodeNPK packs the two nutrient-presence flags into the delimited string
// form stored in soil_readings.npk, e.g. "Fósforo:1,Potássio:0".
func EncodeNPK(phosphorus, potassium bool) string {
	return fmt.Sprintf("Fósforo:%d,Potássio:%d", boolBit(phosphorus), boolBit(potassium))
}

// DecodeNPK inverts EncodeNPK. It fails on anything that is not the exact
// encoded form so a corrupted row surfaces instead of reading as "absent".
func DecodeNPK(s string) (phosphorus, potassium bool, err error) {
	m := npkRe.FindStringSubmatch(s)
	if m == nil {
		return false, false, fmt.Errorf("malformed npk encoding: %q", s)
	}
	return m[1] == "1", m[2] == "1", nil
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseBit(s string) bool { return s == "1" }

func parseFloatField(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
