// Package pid holds the static mapping from OBD-II mode 01 parameter ids
// to the canonical signal names used as storage columns.
package pid

import (
	"strconv"
	"strings"
)

// PositionalWidth is the number of values a positional pids array carries.
const PositionalWidth = 21

// Canonical signal names.
const (
	EngineLoad           = "ENGINE_LOAD"
	CoolantTemp          = "COOLANT_TEMP"
	ShortFuelTrim1       = "SHORT_FUEL_TRIM_1"
	LongFuelTrim1        = "LONG_FUEL_TRIM_1"
	ShortFuelTrim2       = "SHORT_FUEL_TRIM_2"
	LongFuelTrim2        = "LONG_FUEL_TRIM_2"
	FuelPressure         = "FUEL_PRESSURE"
	IntakeMAP            = "INTAKE_MAP"
	RPM                  = "RPM"
	Speed                = "SPEED"
	TimingAdvance        = "TIMING_ADVANCE"
	IntakeTemp           = "INTAKE_TEMP"
	MAFFlow              = "MAF_FLOW"
	Throttle             = "THROTTLE"
	Runtime              = "RUNTIME"
	DistanceWithMIL      = "DISTANCE_WITH_MIL"
	CommandedEGR         = "COMMANDED_EGR"
	EGRError             = "EGR_ERROR"
	FuelLevel            = "FUEL_LEVEL"
	DistanceSinceCleared = "DISTANCE_SINCE_CLEARED"
	Barometric           = "BAROMETRIC"
	ControlModuleVoltage = "CONTROL_MODULE_VOLTAGE"
	AbsoluteEngineLoad   = "ABSOLUTE_ENGINE_LOAD"
	RelativeThrottle     = "RELATIVE_THROTTLE"
	AmbientTemp          = "AMBIENT_TEMP"
	EthanolFuel          = "ETHANOL_FUEL"
	EngineOilTemp        = "ENGINE_OIL_TEMP"
	EngineFuelRate       = "ENGINE_FUEL_RATE"
)

// entry pairs a decimal PID code with its canonical name.
type entry struct {
	code string
	name string
}

// positional lists the PIDs carried by the fixed-order array, in order.
var positional = [PositionalWidth]entry{
	{"4", EngineLoad},
	{"5", CoolantTemp},
	{"6", ShortFuelTrim1},
	{"7", LongFuelTrim1},
	{"10", FuelPressure},
	{"11", IntakeMAP},
	{"12", RPM},
	{"13", Speed},
	{"14", TimingAdvance},
	{"15", IntakeTemp},
	{"16", MAFFlow},
	{"17", Throttle},
	{"31", Runtime},
	{"33", DistanceWithMIL},
	{"47", FuelLevel},
	{"49", DistanceSinceCleared},
	{"51", Barometric},
	{"66", ControlModuleVoltage},
	{"67", AbsoluteEngineLoad},
	{"70", AmbientTemp},
	{"92", EngineOilTemp},
}

// codedOnly lists PIDs that only the keyed dialect can report.
var codedOnly = []entry{
	{"8", ShortFuelTrim2},
	{"9", LongFuelTrim2},
	{"44", CommandedEGR},
	{"45", EGRError},
	{"69", RelativeThrottle},
	{"82", EthanolFuel},
	{"94", EngineFuelRate},
}

// Table is a read-only PID code lookup. The zero value is not usable; use Default.
type Table struct {
	byCode map[string]string
	codes  []string
	names  []string
}

var defaultTable = build() //nolint:gochecknoglobals // immutable after package init

// Default returns the process-wide table.
func Default() *Table {
	return defaultTable
}

func build() *Table {
	t := &Table{byCode: make(map[string]string, len(positional)+len(codedOnly))}
	all := make([]entry, 0, len(positional)+len(codedOnly))
	all = append(all, positional[:]...)
	all = append(all, codedOnly...)
	for _, e := range all {
		t.byCode[e.code] = e.name
	}
	// Names are ordered by numeric code so column order is stable.
	for code := 0; code <= 0xFF; code++ {
		if name, ok := t.byCode[strconv.Itoa(code)]; ok {
			t.codes = append(t.codes, strconv.Itoa(code))
			t.names = append(t.names, name)
		}
	}
	return t
}

// Lookup resolves a PID code to its canonical name. Codes are decimal
// strings ("12"); hex codes with a 0x prefix ("0x0C") are accepted too.
func (t *Table) Lookup(code string) (string, bool) {
	norm, ok := Normalize(code)
	if !ok {
		return "", false
	}
	name, ok := t.byCode[norm]
	return name, ok
}

// Positional returns the canonical name for a positional array index.
func (t *Table) Positional(index int) (string, bool) {
	if index < 0 || index >= PositionalWidth {
		return "", false
	}
	return positional[index].name, true
}

// PositionalNames returns the positional column names in array order.
func (t *Table) PositionalNames() []string {
	out := make([]string, PositionalWidth)
	for i, e := range positional {
		out[i] = e.name
	}
	return out
}

// Names returns every canonical name known to the table, ordered by code.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Codes returns every decimal code known to the table, in numeric order.
func (t *Table) Codes() []string {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out
}

// Len returns the number of codes in the table.
func (t *Table) Len() int {
	return len(t.byCode)
}

// Normalize converts a PID code to its decimal string form.
func Normalize(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	base := 10
	lower := strings.ToLower(code)
	if strings.HasPrefix(lower, "0x") {
		base = 16
		code = lower[2:]
	}
	n, err := strconv.ParseUint(code, base, 16)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(n, 10), true
}
