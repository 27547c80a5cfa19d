// Package simulator drives one or more fake vehicles against a running
// ingestion service and checks that the expected rows were stored.
package simulator

import (
	"fmt"
	"strings"
	"time"
)

// Dialect selects the frame shape a simulated vehicle sends.
type Dialect string

// Supported dialects.
const (
	DialectCoded      Dialect = "coded"
	DialectPositional Dialect = "positional"
	DialectFlat       Dialect = "flat"
	DialectText       Dialect = "text"
)

// Dialects lists every dialect the generator can produce.
func Dialects() []Dialect {
	return []Dialect{DialectCoded, DialectPositional, DialectFlat, DialectText}
}

// ParseDialect resolves a dialect name, case-insensitively.
func ParseDialect(name string) (Dialect, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Dialects() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unknown dialect %q", ErrInvalidConfig, name)
}

// Config holds configuration for a simulation run
type Config struct {
	BaseURL        string        // Base URL of the service, http or https
	Token          string        // Shared secret presented on connect
	Dialect        Dialect       // Frame shape to send
	Vehicles       int           // Number of concurrent sessions
	Frames         int           // Frames per session, malformed ones included
	Interval       time.Duration // Pause between frames within a session
	MalformedEvery int           // Every Nth frame is malformed; 0 disables
	UnknownPIDs    bool          // Add an unknown code to coded frames
	Timeout        time.Duration // HTTP and handshake timeout
	Verify         bool          // Compare the stored row count before and after
	Seed           uint64        // Generator seed; 0 picks a random one
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Token == "":
		return fmt.Errorf("%w: token must not be empty", ErrInvalidConfig)
	case c.Vehicles <= 0:
		return fmt.Errorf("%w: vehicles must be positive", ErrInvalidConfig)
	case c.Frames <= 0:
		return fmt.Errorf("%w: frames must be positive", ErrInvalidConfig)
	case c.Interval < 0:
		return fmt.Errorf("%w: interval must not be negative", ErrInvalidConfig)
	case c.MalformedEvery < 0:
		return fmt.Errorf("%w: malformed-every must not be negative", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if _, err := ParseDialect(string(c.Dialect)); err != nil {
		return err
	}
	return nil
}

// Stats holds run statistics
type Stats struct {
	SessionsOpened    int
	SessionsFailed    int
	FramesSent        int
	FramesValid       int
	FramesMalformed   int
	RowsBefore        int
	RowsAfter         int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
	SessionCloseCodes map[int]int
}

// RowsStored is the row count delta observed during the run.
func (s *Stats) RowsStored() int {
	return s.RowsAfter - s.RowsBefore
}
