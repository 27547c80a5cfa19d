package simulator

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	mrand "math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/obdstream/internal/domain/pid"
)

// UnknownPID is a code no table entry resolves; coded frames carry it when
// unknown PIDs are enabled.
const UnknownPID = "250"

// vinLength is the length of a vehicle identification number.
const vinLength = 17

// Battery readings in millivolts/10, the way the logger reports them.
const (
	batteryRawMin = 1150
	batteryRawMax = 1450
	batteryScale  = 100
)

// valueRange bounds a generated signal value.
type valueRange struct {
	min, max float64
}

// signalRanges gives plausible values per signal; anything missing uses defaultRange.
var signalRanges = map[string]valueRange{ //nolint:gochecknoglobals // read-only lookup table
	pid.EngineLoad:           {10, 90},
	pid.CoolantTemp:          {70, 105},
	pid.ShortFuelTrim1:       {-10, 10},
	pid.LongFuelTrim1:        {-10, 10},
	pid.ShortFuelTrim2:       {-10, 10},
	pid.LongFuelTrim2:        {-10, 10},
	pid.FuelPressure:         {250, 450},
	pid.IntakeMAP:            {20, 110},
	pid.RPM:                  {700, 4500},
	pid.Speed:                {0, 130},
	pid.TimingAdvance:        {-5, 40},
	pid.IntakeTemp:           {10, 60},
	pid.MAFFlow:              {2, 80},
	pid.Throttle:             {10, 85},
	pid.Runtime:              {0, 7200},
	pid.DistanceWithMIL:      {0, 50},
	pid.CommandedEGR:         {0, 40},
	pid.EGRError:             {-10, 10},
	pid.FuelLevel:            {5, 100},
	pid.DistanceSinceCleared: {0, 5000},
	pid.Barometric:           {95, 103},
	pid.ControlModuleVoltage: {12, 14.6},
	pid.AbsoluteEngineLoad:   {10, 90},
	pid.RelativeThrottle:     {0, 80},
	pid.AmbientTemp:          {-10, 35},
	pid.EthanolFuel:          {0, 15},
	pid.EngineOilTemp:        {70, 120},
	pid.EngineFuelRate:       {0.5, 25},
}

var defaultRange = valueRange{0, 100} //nolint:gochecknoglobals // constant value

// malformedFrames are rejected by the decoder: bad JSON, a non-object,
// and a wrongly typed known field.
var malformedFrames = []string{ //nolint:gochecknoglobals // read-only samples
	`{"obd":{"vin":"TRUNCATED","pids":{"12":`,
	`[1,2,3]`,
	`{"pids":"not-a-collection","ts":0}`,
	`{"text":42}`,
}

// Generator builds frames for one simulated vehicle. It is not safe for
// concurrent use; each session owns one.
type Generator struct {
	dialect     Dialect
	vin         string
	start       time.Time
	interval    time.Duration
	unknownPIDs bool
	table       *pid.Table
	rnd         *mrand.Rand
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSeed makes the generated values reproducible.
func WithSeed(seed uint64) GeneratorOption {
	return func(g *Generator) {
		if seed != 0 {
			g.rnd = mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
	}
}

// WithVIN overrides the generated vehicle identifier.
func WithVIN(vin string) GeneratorOption {
	return func(g *Generator) { g.vin = vin }
}

// WithStart sets the session start used for st and timestamp fields.
func WithStart(t time.Time) GeneratorOption {
	return func(g *Generator) { g.start = t }
}

// WithInterval sets the offset step between consecutive frames.
func WithInterval(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.interval = d }
}

// WithUnknownPIDs adds UnknownPID to every coded frame.
func WithUnknownPIDs(enabled bool) GeneratorOption {
	return func(g *Generator) { g.unknownPIDs = enabled }
}

// NewGenerator creates a generator for the given dialect.
func NewGenerator(dialect Dialect, opts ...GeneratorOption) *Generator {
	g := &Generator{
		dialect:  dialect,
		vin:      NewVIN(),
		start:    time.Now(),
		interval: time.Second,
		table:    pid.Default(),
		rnd:      mrand.New(mrand.NewPCG(randomSeed(), randomSeed())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// VIN returns the vehicle identifier carried by generated frames.
func (g *Generator) VIN() string { return g.vin }

// Frame builds the seq-th valid frame.
func (g *Generator) Frame(seq int) ([]byte, error) {
	var body map[string]any
	switch g.dialect {
	case DialectCoded:
		body = g.coded(seq)
	case DialectPositional:
		body = g.positional(seq)
	case DialectFlat:
		body = g.flat(seq)
	case DialectText:
		body = g.text(seq)
	default:
		return nil, fmt.Errorf("%w: unknown dialect %q", ErrInvalidConfig, g.dialect)
	}
	return json.Marshal(body)
}

// Malformed returns a frame the service must reject without closing the session.
func (g *Generator) Malformed(seq int) []byte {
	return []byte(malformedFrames[seq%len(malformedFrames)])
}

func (g *Generator) offsetMillis(seq int) int64 {
	return int64(seq) * g.interval.Milliseconds()
}

func (g *Generator) battery() int64 {
	return batteryRawMin + g.rnd.Int64N(batteryRawMax-batteryRawMin+1)
}

func (g *Generator) coded(seq int) map[string]any {
	codes := g.table.Codes()
	pids := make(map[string]any, len(codes)+1)
	for _, code := range codes {
		name, _ := g.table.Lookup(code)
		pids[code] = g.value(name)
	}
	if g.unknownPIDs {
		pids[UnknownPID] = g.value("")
	}
	return map[string]any{
		"obd": map[string]any{
			"vin":     g.vin,
			"battery": g.battery(),
			"pids":    pids,
		},
		"st": g.start.Unix(),
		"ts": g.offsetMillis(seq),
	}
}

func (g *Generator) positional(seq int) map[string]any {
	names := g.table.PositionalNames()
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = g.value(name)
	}
	return map[string]any{
		"vin":     g.vin,
		"battery": g.battery(),
		"pids":    values,
		"st":      g.start.Unix(),
		"ts":      g.offsetMillis(seq),
	}
}

// flat uses the positional vocabulary so every schema with signals stores it.
func (g *Generator) flat(seq int) map[string]any {
	names := g.table.PositionalNames()
	body := make(map[string]any, len(names)+3)
	for _, name := range names {
		body[camelCase(name)] = g.value(name)
	}
	body["vin"] = g.vin
	body["batteryVoltage"] = float64(g.battery()) / batteryScale
	body["timestamp"] = g.start.UnixMilli() + g.offsetMillis(seq)
	return body
}

func (g *Generator) text(seq int) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("vin=%s seq=%d rpm=%.0f speed=%.0f", g.vin, seq, g.value(pid.RPM), g.value(pid.Speed)),
	}
}

// value draws a reading for name, rounded to two decimals.
func (g *Generator) value(name string) float64 {
	r, ok := signalRanges[name]
	if !ok {
		r = defaultRange
	}
	v := r.min + g.rnd.Float64()*(r.max-r.min)
	return math.Round(v*100) / 100
}

// camelCase turns ENGINE_LOAD into engineLoad and SHORT_FUEL_TRIM_1 into shortFuelTrim1.
func camelCase(name string) string {
	parts := strings.Split(strings.ToLower(name), "_")
	var b strings.Builder
	b.Grow(len(name))
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 0 {
			b.WriteString(strings.ToUpper(part[:1]))
			b.WriteString(part[1:])
			continue
		}
		b.WriteString(part)
	}
	return b.String()
}

// NewVIN returns a 17 character identifier built from a random UUID.
// Hex digits never include the letters a VIN forbids (I, O, Q).
func NewVIN() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:vinLength]
}

// randomSeed reads a seed from crypto/rand.
func randomSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}
