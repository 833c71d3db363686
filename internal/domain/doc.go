// Package domain models soil-sensor telemetry from the field controller.
//
// # Data Source
//
// Readings originate from an ESP32 field controller (real hardware on a
// serial device, or the Wokwi simulator behind an RFC2217/TCP bridge). The
// controller prints one reading per line over its serial console; the
// ingestion service connects to that stream and persists each decoded line.
//
// # Telemetry Line Grammar
//
// One newline-terminated UTF-8 line per reading, five labeled fields in fixed
// order, separated by "|" with optional surrounding whitespace:
//
//	Fósforo:<0|1> | Potássio:<0|1> | Umidade:<float> | pH (sim):<float> | Relé:<LIGADO|DESLIGADO>
//
// e.g.
//
//	Fósforo:1 | Potássio:0 | Umidade:37.20 | pH (sim):6.32 | Relé:LIGADO
//
// The field labels are literal: the controller firmware prints Portuguese
// labels and they are matched bit-exactly. Any deviation from the grammar is
// a decode failure, never a partial reading. Fields the grammar does not
// carry (temperature, rain forecast, growth) stay unset; consumers must treat
// "absent" as distinct from zero.
//
// # NPK Encoding
//
// The two nutrient-presence flags are persisted as a single delimited string:
//
//	"Fósforo:<0|1>,Potássio:<0|1>"
//
// [EncodeNPK] and [DecodeNPK] round-trip this form losslessly; every consumer
// of the soil_readings table parses nutrients through [DecodeNPK] rather than
// re-implementing the string format.
//
// # Irrigation Label
//
// The supervised training label is derived from agronomic thresholds, not
// hardwired physics: irrigate (1) iff both nutrients are present, moisture is
// below 40%, and pH sits inside the (5.5, 6.5) band. The thresholds live in
// [Thresholds] so they can be revisited without touching the pipeline around
// them.
package domain
