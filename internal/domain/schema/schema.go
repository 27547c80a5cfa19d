// Package schema defines the versioned table layouts a deployment can store
// samples in. Exactly one schema is active per process.
package schema

import (
	"fmt"
	"strings"

	"github.com/okian/obdstream/internal/domain/pid"
)

// Version names a schema generation.
type Version string

// Known schema versions.
const (
	// Messages is the message-log table: one free-form text column.
	Messages Version = "messages"
	// Vehicle stores the positional PID set as named columns.
	Vehicle Version = "vehicle"
	// OBD stores every PID the code table knows as named columns.
	OBD Version = "obd"
)

// Schema describes one table layout and its canonical signal vocabulary.
type Schema struct {
	Version Version
	Table   string

	// MessageLog marks the text-only schema; it carries no signals.
	MessageLog bool

	signals []string
	vocab   map[string]struct{}
}

// Lookup returns the schema for a version string.
func Lookup(version string) (*Schema, error) {
	switch Version(strings.ToLower(strings.TrimSpace(version))) {
	case Messages:
		return newSchema(Messages, "messages", true, nil), nil
	case Vehicle:
		return newSchema(Vehicle, "vehicle_data", false, pid.Default().PositionalNames()), nil
	case OBD:
		return newSchema(OBD, "obd_data", false, pid.Default().Names()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}
}

// MustLookup is like Lookup but panics on an unknown version.
func MustLookup(version Version) *Schema {
	s, err := Lookup(string(version))
	if err != nil {
		panic(err)
	}
	return s
}

// Versions lists every known schema version.
func Versions() []Version {
	return []Version{Messages, Vehicle, OBD}
}

func newSchema(v Version, table string, messageLog bool, signals []string) *Schema {
	s := &Schema{
		Version:    v,
		Table:      table,
		MessageLog: messageLog,
		signals:    signals,
		vocab:      make(map[string]struct{}, len(signals)),
	}
	for _, name := range signals {
		s.vocab[name] = struct{}{}
	}
	return s
}

// Has reports whether name is part of the schema's vocabulary.
func (s *Schema) Has(name string) bool {
	_, ok := s.vocab[name]
	return ok
}

// Signals returns the vocabulary in column order.
func (s *Schema) Signals() []string {
	out := make([]string, len(s.signals))
	copy(out, s.signals)
	return out
}

// Column returns the storage column for a canonical signal name.
func Column(name string) string {
	return strings.ToLower(name)
}
