// Package model contains domain models passed between layers.
package model

// Sample is one ingested telemetry observation, stored as one row.
type Sample struct {
	ID             int64              `json:"id,omitempty"`         // row id, assigned by the store
	Timestamp      int64              `json:"timestamp"`            // milliseconds since epoch
	VIN            string             `json:"vin,omitempty"`        // empty when the dialect has none
	BatteryVoltage *float64           `json:"batteryVoltage,omitempty"`
	Signals        map[string]float64 `json:"signals,omitempty"` // canonical name -> value
	Text           string             `json:"text,omitempty"`    // message-log schema only
}

// Signal returns the value of a canonical signal and whether it was reported.
func (s *Sample) Signal(name string) (float64, bool) {
	v, ok := s.Signals[name]
	return v, ok
}

// Clone returns a deep copy so stores never share maps with callers.
func (s Sample) Clone() Sample { //nolint:gocritic // value receiver keeps call sites simple
	out := s
	if s.BatteryVoltage != nil {
		v := *s.BatteryVoltage
		out.BatteryVoltage = &v
	}
	if s.Signals != nil {
		out.Signals = make(map[string]float64, len(s.Signals))
		for k, v := range s.Signals {
			out.Signals[k] = v
		}
	}
	return out
}

// Float64 returns a pointer to v, for optional numeric fields.
func Float64(v float64) *float64 {
	return &v
}
