package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/obdstream/pkg/logger"
)

// PercentageMultiplier converts a ratio into a percentage.
const PercentageMultiplier = 100

// Run executes a complete simulation: health check, concurrent vehicle
// sessions and, when cfg.Verify is set, a stored-row comparison. Stats are
// returned even when the run fails.
//
// Verification compares GET /samples before and after, so it assumes no
// other writer is active against the same service.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{
		StartTime:         time.Now(),
		SessionCloseCodes: make(map[int]int),
	}
	if err := cfg.Validate(); err != nil {
		return stats, err
	}
	wsURL, err := sessionURL(cfg.BaseURL)
	if err != nil {
		return stats, err
	}

	log := logger.Get()
	log.Info(ctx, "starting obdstream simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("dialect", string(cfg.Dialect)),
		logger.Int("vehicles", cfg.Vehicles),
		logger.Int("frames", cfg.Frames),
		logger.Duration("interval", cfg.Interval),
		logger.Int("malformedEvery", cfg.MalformedEvery),
		logger.Bool("unknownPIDs", cfg.UnknownPIDs),
		logger.Bool("verify", cfg.Verify))

	// Step 1: Check service health
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy")

	// Step 2: Baseline row count
	if cfg.Verify {
		if stats.RowsBefore, err = client.CountSamples(ctx); err != nil {
			return stats, err
		}
	}

	// Step 3: Stream from every vehicle concurrently
	results := runVehicles(ctx, cfg, wsURL)
	var sessionErrs []error
	for _, r := range results {
		stats.SessionsOpened++
		stats.FramesSent += r.sent
		stats.FramesValid += r.valid
		stats.FramesMalformed += r.malformed
		stats.SessionCloseCodes[r.closeCode]++
		if r.err != nil {
			stats.SessionsFailed++
			sessionErrs = append(sessionErrs, fmt.Errorf("vehicle %s: %w", r.vin, r.err))
		}
	}

	// Step 4: Verify the stored rows. The server answers our close only
	// after the last frame was processed, so no settling delay is needed.
	var verifyErr error
	if cfg.Verify {
		if stats.RowsAfter, err = client.CountSamples(ctx); err != nil {
			verifyErr = err
		} else {
			verifyErr = verifyRows(stats)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if err := errors.Join(append(sessionErrs, verifyErr)...); err != nil {
		return stats, err
	}
	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

// runVehicles starts one session per vehicle and waits for all of them.
func runVehicles(ctx context.Context, cfg *Config, wsURL string) []vehicleResult {
	results := make([]vehicleResult, cfg.Vehicles)
	start := time.Now()

	var wg sync.WaitGroup
	for i := range cfg.Vehicles {
		opts := []GeneratorOption{
			WithStart(start),
			WithInterval(cfg.Interval),
			WithUnknownPIDs(cfg.UnknownPIDs),
		}
		if cfg.Seed != 0 {
			opts = append(opts, WithSeed(cfg.Seed+uint64(i)))
		}
		gen := NewGenerator(cfg.Dialect, opts...)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = runVehicle(ctx, cfg, wsURL, gen)
		}(i)
	}
	wg.Wait()
	return results
}

// verifyRows checks that exactly one row was stored per valid frame.
func verifyRows(stats *Stats) error {
	if stored := stats.RowsStored(); stored != stats.FramesValid {
		return fmt.Errorf("%w: stored %d rows, sent %d valid frames", ErrVerification, stored, stats.FramesValid)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, framesPerSecond float64

	if stats.SessionsOpened > 0 {
		successRate = float64(stats.SessionsOpened-stats.SessionsFailed) / float64(stats.SessionsOpened) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		framesPerSecond = float64(stats.FramesSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("sessionsOpened", stats.SessionsOpened),
		logger.Int("sessionsFailed", stats.SessionsFailed),
		logger.Int("framesSent", stats.FramesSent),
		logger.Int("framesValid", stats.FramesValid),
		logger.Int("framesMalformed", stats.FramesMalformed),
		logger.Int("rowsStored", stats.RowsStored()),
		logger.Any("closeCodes", stats.SessionCloseCodes),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("sessionSuccessRate", successRate),
		logger.Float64("framesPerSecond", framesPerSecond))
}
