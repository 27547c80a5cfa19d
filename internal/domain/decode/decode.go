// Package decode parses raw telemetry frames into dialect-tagged records.
//
// Discriminators are tried in a fixed order:
//
//  1. "obd" object: the nested body carries vin, battery and pids
//  2. "pids" at the top level
//  3. "text": the message-log dialect
//  4. any other numeric field: the flat dialect
//
// Inside 1 and 2 the shape of pids picks the variant: an array is
// positional, an object is coded, absence is a no-op.
package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Wire field names.
const (
	keyOBD            = "obd"
	keyPIDs           = "pids"
	keyText           = "text"
	keyVIN            = "vin"
	keyBattery        = "battery"
	keyBatteryVoltage = "battery_voltage"
	keyBatteryCamel   = "batteryVoltage"
	keyTimestamp      = "timestamp"
	keyStart          = "st"
	keyStartLong      = "startTime"
	keyOffset         = "ts"
	keyOffsetLong     = "timestampMS"
)

// reservedFlat are top-level keys the flat dialect never treats as signals.
var reservedFlat = map[string]struct{}{ //nolint:gochecknoglobals // read-only lookup set
	keyVIN:            {},
	keyBattery:        {},
	keyBatteryVoltage: {},
	keyBatteryCamel:   {},
	keyTimestamp:      {},
	keyStart:          {},
	keyStartLong:      {},
	keyOffset:         {},
	keyOffsetLong:     {},
}

// Decode parses one frame. Unparseable input, non-object JSON and
// wrongly-typed known fields return an error wrapping ErrDecode.
func Decode(raw []byte) (Record, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return nil, err
	}

	if v, ok := obj[keyOBD]; ok {
		body, ok := v.(map[string]any)
		if !ok {
			return nil, fieldTypeError(keyOBD, "an object")
		}
		return decodeCoded(body, obj)
	}
	if _, ok := obj[keyPIDs]; ok {
		return decodeCoded(obj, obj)
	}
	if v, ok := obj[keyText]; ok {
		text, ok := v.(string)
		if !ok {
			return nil, fieldTypeError(keyText, "a string")
		}
		return TextRecord{Text: text}, nil
	}
	return decodeFlat(obj)
}

func parseObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: frame is not an object", ErrDecode)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrDecode)
	}
	return obj, nil
}

// decodeCoded reads vin, battery and pids from body and the timing
// fields from outer. body and outer are the same map for top-level pids.
func decodeCoded(body, outer map[string]any) (Record, error) {
	rawPIDs, ok := body[keyPIDs]
	if !ok || rawPIDs == nil {
		return NoopRecord{Reason: "no pids"}, nil
	}

	vin, err := optString(body, keyVIN)
	if err != nil {
		return nil, err
	}
	battery, err := optNumber(body, keyBattery)
	if err != nil {
		return nil, err
	}
	timing, err := decodeTiming(outer)
	if err != nil {
		return nil, err
	}

	switch pids := rawPIDs.(type) {
	case []any:
		values := make([]*float64, len(pids))
		for i, v := range pids {
			values[i] = asNumber(v)
		}
		return PositionalRecord{VIN: vin, Battery: battery, PIDs: values, Timing: timing}, nil
	case map[string]any:
		values := make(map[string]*float64, len(pids))
		for code, v := range pids {
			values[code] = asNumber(v)
		}
		return CodedRecord{VIN: vin, Battery: battery, PIDs: values, Timing: timing}, nil
	default:
		return nil, fieldTypeError(keyPIDs, "an array or an object")
	}
}

func decodeFlat(obj map[string]any) (Record, error) {
	vin, err := optString(obj, keyVIN)
	if err != nil {
		return nil, err
	}
	battery, err := optNumber(obj, keyBatteryVoltage)
	if err != nil {
		return nil, err
	}
	if battery == nil {
		if battery, err = optNumber(obj, keyBatteryCamel); err != nil {
			return nil, err
		}
	}
	ts, err := optInt(obj, keyTimestamp)
	if err != nil {
		return nil, err
	}
	timing, err := decodeTiming(obj)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]float64)
	var invalid map[string]any
	for k, v := range obj {
		if _, reserved := reservedFlat[k]; reserved {
			continue
		}
		if n := asNumber(v); n != nil {
			fields[k] = *n
			continue
		}
		if invalid == nil {
			invalid = make(map[string]any)
		}
		invalid[k] = v
	}

	if len(fields) == 0 && battery == nil {
		return NoopRecord{Reason: "no recognised fields"}, nil
	}
	return FlatRecord{
		VIN:            vin,
		BatteryVoltage: battery,
		Timestamp:      ts,
		Timing:         timing,
		Fields:         fields,
		Invalid:        invalid,
	}, nil
}

// decodeTiming reads st/ts, falling back to startTime/timestampMS.
func decodeTiming(obj map[string]any) (Timing, error) {
	var t Timing
	var err error
	if t.StartSeconds, err = optInt(obj, keyStart); err != nil {
		return t, err
	}
	if t.StartSeconds == nil {
		if t.StartSeconds, err = optInt(obj, keyStartLong); err != nil {
			return t, err
		}
	}
	if t.OffsetMillis, err = optInt(obj, keyOffset); err != nil {
		return t, err
	}
	if t.OffsetMillis == nil {
		if t.OffsetMillis, err = optInt(obj, keyOffsetLong); err != nil {
			return t, err
		}
	}
	return t, nil
}

func optString(obj map[string]any, key string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldTypeError(key, "a string")
	}
	return s, nil
}

func optNumber(obj map[string]any, key string) (*float64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	n := asNumber(v)
	if n == nil {
		return nil, fieldTypeError(key, "a number")
	}
	return n, nil
}

func optInt(obj map[string]any, key string) (*int64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	num, ok := v.(json.Number)
	if !ok {
		return nil, fieldTypeError(key, "an integer")
	}
	i, err := num.Int64()
	if err != nil {
		return nil, fieldTypeError(key, "an integer")
	}
	return &i, nil
}

// asNumber returns nil for anything that is not a finite JSON number.
func asNumber(v any) *float64 {
	num, ok := v.(json.Number)
	if !ok {
		return nil
	}
	f, err := num.Float64()
	if err != nil {
		return nil
	}
	return &f
}
