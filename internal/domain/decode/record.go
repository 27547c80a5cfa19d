package decode

// Kind tags the closed set of record variants Decode can produce.
type Kind int

// Record kinds.
const (
	KindNoop Kind = iota
	KindText
	KindFlat
	KindPositional
	KindCoded
)

func (k Kind) String() string {
	switch k {
	case KindNoop:
		return "noop"
	case KindText:
		return "text"
	case KindFlat:
		return "flat"
	case KindPositional:
		return "positional"
	case KindCoded:
		return "coded"
	default:
		return "unknown"
	}
}

// Record is a decoded frame. Concrete types: TextRecord, FlatRecord,
// PositionalRecord, CodedRecord and NoopRecord.
type Record interface {
	Kind() Kind
}

// Timing carries the split timestamp fields: an epoch in seconds and a
// relative offset in milliseconds. Either may be absent.
type Timing struct {
	StartSeconds *int64
	OffsetMillis *int64
}

// TextRecord is the message-log dialect: {"text": "..."}.
type TextRecord struct {
	Text string
}

// FlatRecord carries top-level named fields.
type FlatRecord struct {
	VIN            string
	BatteryVoltage *float64 // already in volts
	Timestamp      *int64   // absolute milliseconds, when sent
	Timing

	// Fields holds every other numeric top-level field under its original key.
	Fields map[string]float64
	// Invalid holds the remaining non-numeric fields with their raw values
	// (nil for JSON null) so they can be reported rather than lost.
	Invalid map[string]any
}

// PositionalRecord is coded dialect A: pids is a fixed-order array.
type PositionalRecord struct {
	VIN     string
	Battery *float64 // integer encoded, hundredths of a volt
	PIDs    []*float64
	Timing
}

// CodedRecord is coded dialect B: pids maps a PID code to its value.
// A nil value marks a null or non-numeric entry.
type CodedRecord struct {
	VIN     string
	Battery *float64 // integer encoded, hundredths of a volt
	PIDs    map[string]*float64
	Timing
}

// NoopRecord is a structured frame without a usable discriminator.
type NoopRecord struct {
	Reason string
}

func (TextRecord) Kind() Kind       { return KindText }
func (FlatRecord) Kind() Kind       { return KindFlat }
func (PositionalRecord) Kind() Kind { return KindPositional }
func (CodedRecord) Kind() Kind      { return KindCoded }
func (NoopRecord) Kind() Kind       { return KindNoop }
