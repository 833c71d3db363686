package domain

import "regexp"

// lineRe matches one telemetry line from the field controller. Labels are
// literal (the firmware prints them in Portuguese); whitespace around the
// "|" delimiter and after each colon is tolerated. See the package doc for
// the full grammar.
var lineRe = regexp.MustCompile(
	`^\s*Fósforo:\s*([01])\s*\|\s*Potássio:\s*([01])\s*\|\s*Umidade:\s*([0-9]+(?:\.[0-9]+)?)\s*\|\s*pH\s*\(sim\):\s*([0-9]+(?:\.[0-9]+)?)\s*\|\s*Relé:\s*(LIGADO|DESLIGADO)\s*$`,
)

// Decode parses one telemetry line into a Reading. It is pure and stateless:
// no I/O, no mutation, identical input always yields the identical result.
// A line that does not match the grammar returns a *DecodeError carrying the
// raw line; Decode never panics past this boundary.
func Decode(line string) (Reading, error) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Reading{}, &DecodeError{Line: line}
	}

	moisture, err := parseFloatField(m[3])
	if err != nil {
		return Reading{}, &DecodeError{Line: line}
	}
	ph, err := parseFloatField(m[4])
	if err != nil {
		return Reading{}, &DecodeError{Line: line}
	}

	return Reading{
		Phosphorus: parseBit(m[1]),
		Potassium:  parseBit(m[2]),
		Moisture:   moisture,
		PH:         ph,
		RelayOn:    m[5] == "LIGADO",
	}, nil
}
