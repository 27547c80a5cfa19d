package ws

import (
	"context"
	"errors"

	"github.com/okian/obdstream/internal/domain/decode"
	"github.com/okian/obdstream/internal/domain/mapping"
	"github.com/okian/obdstream/internal/domain/model"
	"github.com/okian/obdstream/pkg/metrics"
)

// Outcome is the result of processing one frame.
type Outcome int

// Frame outcomes.
const (
	Persisted Outcome = iota
	Ignored
	DecodeFailed
	MappingFailed
	StorageFailed
)

func (o Outcome) String() string {
	switch o {
	case Persisted:
		return "persisted"
	case Ignored:
		return "ignored"
	case DecodeFailed:
		return "decode_failed"
	case MappingFailed:
		return "mapping_failed"
	case StorageFailed:
		return "storage_failed"
	default:
		return "unknown"
	}
}

// Outcomes lists every outcome, in declaration order.
func Outcomes() []Outcome {
	return []Outcome{Persisted, Ignored, DecodeFailed, MappingFailed, StorageFailed}
}

// Inserter is the storage the pipeline writes to.
type Inserter interface {
	InsertSample(ctx context.Context, s model.Sample) (int64, error)
}

// Result describes what happened to one frame.
type Result struct {
	Outcome Outcome
	Kind    decode.Kind
	// ID is the stored row id when Outcome is Persisted.
	ID int64
	// Dropped lists per-field mapping errors of a persisted or failed record.
	Dropped []error
	// Err is the cause for DecodeFailed, MappingFailed and StorageFailed,
	// and the skip reason for Ignored.
	Err error
}

// Pipeline runs decode, map and persist for one frame at a time. It holds
// no per-session state and is shared by all sessions.
type Pipeline struct {
	mapper *mapping.Mapper
	store  Inserter
}

// NewPipeline builds a pipeline.
func NewPipeline(mapper *mapping.Mapper, store Inserter) *Pipeline {
	return &Pipeline{mapper: mapper, store: store}
}

// Process handles one text frame.
func (p *Pipeline) Process(ctx context.Context, raw []byte, info mapping.SessionInfo) Result {
	rec, err := decode.Decode(raw)
	if err != nil {
		return Result{Outcome: DecodeFailed, Err: err}
	}
	kind := rec.Kind()
	metrics.RecordDecodedKind(kind.String())

	if noop, ok := rec.(decode.NoopRecord); ok {
		return Result{Outcome: Ignored, Kind: kind, Err: errors.New(noop.Reason)}
	}

	sample, dropped, err := p.mapper.Map(rec, info)
	if err != nil {
		return Result{Outcome: MappingFailed, Kind: kind, Err: err}
	}
	for _, d := range dropped {
		metrics.RecordFieldsDropped(dropReason(d), 1)
	}

	id, err := p.store.InsertSample(ctx, sample)
	if err != nil {
		return Result{Outcome: StorageFailed, Kind: kind, Dropped: dropped, Err: err}
	}
	return Result{Outcome: Persisted, Kind: kind, ID: id, Dropped: dropped}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, mapping.ErrUnknownPID):
		return "unknown_pid"
	case errors.Is(err, mapping.ErrNotInSchema):
		return "not_in_schema"
	case errors.Is(err, mapping.ErrNullValue):
		return "null_value"
	case errors.Is(err, mapping.ErrNotNumeric):
		return "not_numeric"
	case errors.Is(err, mapping.ErrDuplicateSignal):
		return "duplicate"
	default:
		return "other"
	}
}
