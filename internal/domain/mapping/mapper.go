// Package mapping turns decoded records into samples shaped for the active
// schema: codes become canonical names, split timestamps are rebuilt and
// fields the schema cannot hold are dropped one at a time.
package mapping

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/okian/obdstream/internal/domain/decode"
	"github.com/okian/obdstream/internal/domain/model"
	"github.com/okian/obdstream/internal/domain/pid"
	"github.com/okian/obdstream/internal/domain/schema"
)

// BatteryScale converts the integer battery encoding (hundredths of a volt)
// to volts.
const BatteryScale = 100

// SessionInfo is the per-session context a record is mapped against.
type SessionInfo struct {
	// StartSeconds is the session start epoch, used when a record carries
	// no start time of its own.
	StartSeconds int64
	// ReceivedAt is when the frame arrived.
	ReceivedAt time.Time
}

// Mapper is safe for concurrent use; it only reads its table and schema.
type Mapper struct {
	table  *pid.Table
	schema *schema.Schema
}

// New builds a Mapper. A nil table selects pid.Default().
func New(table *pid.Table, s *schema.Schema) *Mapper {
	if table == nil {
		table = pid.Default()
	}
	return &Mapper{table: table, schema: s}
}

// Schema returns the schema samples are shaped for.
func (m *Mapper) Schema() *schema.Schema {
	return m.schema
}

// Map converts rec into a sample. dropped lists per-field errors for fields
// that were left out; err is a whole-record failure and means nothing
// should be stored.
func (m *Mapper) Map(rec decode.Record, sess SessionInfo) (sample model.Sample, dropped []error, err error) {
	if !m.accepts(rec) {
		return model.Sample{}, nil, fmt.Errorf("%w: %s record in %s schema", ErrUnsupportedRecord, kindOf(rec), m.schema.Version)
	}

	switch r := rec.(type) {
	case decode.TextRecord:
		return model.Sample{Timestamp: sess.ReceivedAt.UnixMilli(), Text: r.Text}, nil, nil
	case decode.FlatRecord:
		return m.mapFlat(r, sess)
	case decode.PositionalRecord:
		return m.mapPositional(r, sess)
	case decode.CodedRecord:
		return m.mapCoded(r, sess)
	default:
		return model.Sample{}, nil, fmt.Errorf("%w: %s record", ErrUnsupportedRecord, kindOf(rec))
	}
}

func (m *Mapper) accepts(rec decode.Record) bool {
	if rec == nil {
		return false
	}
	switch rec.Kind() {
	case decode.KindText:
		return m.schema.MessageLog
	case decode.KindFlat, decode.KindPositional, decode.KindCoded:
		return !m.schema.MessageLog
	default:
		return false
	}
}

func (m *Mapper) mapCoded(r decode.CodedRecord, sess SessionInfo) (model.Sample, []error, error) {
	ts, err := codedTimestamp(r.Timing, sess)
	if err != nil {
		return model.Sample{}, nil, err
	}
	sample := model.Sample{
		Timestamp:      ts,
		VIN:            r.VIN,
		BatteryVoltage: scaleBattery(r.Battery),
		Signals:        make(map[string]float64, len(r.PIDs)),
	}

	// Sorted so dropped-field reports are deterministic.
	codes := make([]string, 0, len(r.PIDs))
	for code := range r.PIDs {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var drops []error
	for _, code := range codes {
		name, ok := m.table.Lookup(code)
		if !ok {
			drops = append(drops, dropped(code, ErrUnknownPID))
			continue
		}
		if !m.schema.Has(name) {
			drops = append(drops, dropped(code, ErrNotInSchema))
			continue
		}
		v := r.PIDs[code]
		if v == nil {
			drops = append(drops, dropped(code, ErrNullValue))
			continue
		}
		// "12" and "0x0C" both name RPM; the first code in sorted order wins.
		if _, dup := sample.Signals[name]; dup {
			drops = append(drops, dropped(code, ErrDuplicateSignal))
			continue
		}
		sample.Signals[name] = *v
	}
	return sample, drops, nil
}

func (m *Mapper) mapPositional(r decode.PositionalRecord, sess SessionInfo) (model.Sample, []error, error) {
	if len(r.PIDs) < pid.PositionalWidth {
		return model.Sample{}, nil, fmt.Errorf("%w: got %d values, want %d", ErrShortPositional, len(r.PIDs), pid.PositionalWidth)
	}
	ts, err := codedTimestamp(r.Timing, sess)
	if err != nil {
		return model.Sample{}, nil, err
	}
	sample := model.Sample{
		Timestamp:      ts,
		VIN:            r.VIN,
		BatteryVoltage: scaleBattery(r.Battery),
		Signals:        make(map[string]float64, pid.PositionalWidth),
	}

	var drops []error
	for i, v := range r.PIDs[:pid.PositionalWidth] {
		if v == nil {
			continue
		}
		name, _ := m.table.Positional(i)
		if !m.schema.Has(name) {
			drops = append(drops, dropped(name, ErrNotInSchema))
			continue
		}
		sample.Signals[name] = *v
	}
	return sample, drops, nil
}

func (m *Mapper) mapFlat(r decode.FlatRecord, sess SessionInfo) (model.Sample, []error, error) {
	ts, err := flatTimestamp(r, sess)
	if err != nil {
		return model.Sample{}, nil, err
	}
	sample := model.Sample{
		Timestamp:      ts,
		VIN:            r.VIN,
		BatteryVoltage: r.BatteryVoltage,
		Signals:        make(map[string]float64, len(r.Fields)),
	}

	var drops []error
	for _, key := range sortedKeys(r.Fields) {
		name := CanonicalName(key)
		if !m.schema.Has(name) {
			drops = append(drops, dropped(key, ErrNotInSchema))
			continue
		}
		if _, dup := sample.Signals[name]; dup {
			drops = append(drops, dropped(key, ErrDuplicateSignal))
			continue
		}
		sample.Signals[name] = r.Fields[key]
	}
	for _, key := range sortedKeys(r.Invalid) {
		switch {
		case !m.schema.Has(CanonicalName(key)):
			drops = append(drops, dropped(key, ErrNotInSchema))
		case r.Invalid[key] == nil:
			drops = append(drops, dropped(key, ErrNullValue))
		default:
			drops = append(drops, dropped(key, ErrNotNumeric))
		}
	}
	return sample, drops, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// codedTimestamp is start*1000 + offset. The offset is mandatory.
func codedTimestamp(t decode.Timing, sess SessionInfo) (int64, error) {
	if t.OffsetMillis == nil {
		return 0, ErrMissingTimestamp
	}
	start := sess.StartSeconds
	if t.StartSeconds != nil {
		start = *t.StartSeconds
	}
	return joinTimestamp(start, *t.OffsetMillis)
}

func flatTimestamp(r decode.FlatRecord, sess SessionInfo) (int64, error) {
	switch {
	case r.Timestamp != nil:
		return *r.Timestamp, nil
	case r.StartSeconds == nil && r.OffsetMillis == nil:
		return sess.ReceivedAt.UnixMilli(), nil
	}
	start := sess.StartSeconds
	if r.StartSeconds != nil {
		start = *r.StartSeconds
	}
	var offset int64
	if r.OffsetMillis != nil {
		offset = *r.OffsetMillis
	}
	return joinTimestamp(start, offset)
}

// joinTimestamp returns start*1000 + offset, refusing values that would
// wrap int64.
func joinTimestamp(start, offset int64) (int64, error) {
	if start < 0 || offset < 0 {
		return 0, fmt.Errorf("%w: negative start %d or offset %d", ErrTimestampRange, start, offset)
	}
	if start > (math.MaxInt64-offset)/1000 {
		return 0, fmt.Errorf("%w: start %ds with offset %dms overflows", ErrTimestampRange, start, offset)
	}
	return start*1000 + offset, nil
}

func scaleBattery(raw *float64) *float64 {
	if raw == nil {
		return nil
	}
	return model.Float64(*raw / BatteryScale)
}

// CanonicalName normalises a flat field name to upper snake case:
// "coolant-temp", "coolantTemp" and "COOLANT_TEMP" all give COOLANT_TEMP,
// and "shortFuelTrim1" gives SHORT_FUEL_TRIM_1.
func CanonicalName(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)

	var prev rune
	for i, r := range strings.TrimSpace(key) {
		switch {
		case r == '-' || r == ' ' || r == '.':
			r = '_'
		case i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			b.WriteByte('_')
		case i > 0 && unicode.IsDigit(r) && unicode.IsLetter(prev):
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
		prev = r
	}
	return b.String()
}

func kindOf(rec decode.Record) string {
	if rec == nil {
		return "nil"
	}
	return rec.Kind().String()
}
