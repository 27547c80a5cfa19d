package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/obdstream/internal/simulator"
	"github.com/okian/obdstream/pkg/logger"
)

// Default configuration constants.
const (
	defaultBaseURL  = "http://localhost:9080"
	defaultVehicles = 4
	defaultFrames   = 100
	defaultInterval = 200 * time.Millisecond
	defaultTimeout  = 10 * time.Second
	defaultDeadline = 10 * time.Minute
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: simulate [options]\n\nStreams simulated OBD-II telemetry to an obdstream service.\n\n%s", flags.FlagUsages())
	}

	var (
		baseURL     = flags.StringP("url", "u", defaultBaseURL, "Base URL of the service")
		token       = flags.StringP("token", "t", os.Getenv("OBDSTREAM_AUTH_TOKEN"), "Shared secret (defaults to $OBDSTREAM_AUTH_TOKEN)")
		dialectName = flags.StringP("dialect", "d", string(simulator.DialectCoded), "Frame dialect: "+dialectList())
		vehicles    = flags.IntP("vehicles", "n", defaultVehicles, "Number of concurrent vehicle sessions")
		frames      = flags.IntP("frames", "f", defaultFrames, "Frames per vehicle")
		interval    = flags.Duration("interval", defaultInterval, "Pause between frames")
		malformed   = flags.Int("malformed-every", 0, "Send a malformed frame every N frames (0 disables)")
		unknownPIDs = flags.Bool("unknown-pids", false, "Add an unknown PID code to coded frames")
		timeout     = flags.Duration("timeout", defaultTimeout, "HTTP and handshake timeout")
		deadline    = flags.Duration("deadline", defaultDeadline, "Overall run deadline")
		verify      = flags.Bool("verify", true, "Compare stored row counts before and after")
		seed        = flags.Uint64("seed", 0, "Generator seed (0 picks a random one)")
		logFormat   = flags.String("log-format", "text", "Log format: text or json")
		verbose     = flags.BoolP("verbose", "v", false, "Enable debug logging")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	dialect, err := simulator.ParseDialect(*dialectName)
	if err != nil {
		logger.Get().Error(context.Background(), "invalid arguments", logger.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *deadline)
	defer cancel()

	cfg := &simulator.Config{
		BaseURL:        strings.TrimSuffix(*baseURL, "/"),
		Token:          *token,
		Dialect:        dialect,
		Vehicles:       *vehicles,
		Frames:         *frames,
		Interval:       *interval,
		MalformedEvery: *malformed,
		UnknownPIDs:    *unknownPIDs,
		Timeout:        *timeout,
		Verify:         *verify,
		Seed:           *seed,
	}

	if _, err := simulator.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		return 1
	}
	return 0
}

func dialectList() string {
	names := make([]string, 0, len(simulator.Dialects()))
	for _, d := range simulator.Dialects() {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}
