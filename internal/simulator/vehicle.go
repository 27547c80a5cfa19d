package simulator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/obdstream/pkg/logger"
)

// sessionPath is where the service accepts telemetry sessions.
const sessionPath = "/ws"

// vehicleResult is what one simulated session reports back to the runner.
type vehicleResult struct {
	vin       string
	sent      int
	valid     int
	malformed int
	closeCode int
	err       error
}

// sessionURL turns the http base URL into the ws endpoint.
func sessionURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: base url: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidConfig, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + sessionPath
	return u.String(), nil
}

// runVehicle opens one session, streams cfg.Frames frames and closes it
// normally. The service sends nothing back except close frames, so a
// reader goroutine only watches for the close.
func runVehicle(ctx context.Context, cfg *Config, wsURL string, gen *Generator) vehicleResult {
	res := vehicleResult{vin: gen.VIN()}
	log := logger.Get().With(logger.String("vin", res.vin))

	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Token)

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		res.err = fmt.Errorf("%w: dial: %w", ErrSession, err)
		return res
	}
	defer func() { _ = conn.Close() }()

	closed := make(chan int, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					closed <- ce.Code
				} else {
					closed <- websocket.CloseAbnormalClosure
				}
				return
			}
		}
	}()

	code, early := streamFrames(ctx, cfg, conn, gen, &res, closed)
	if !early {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(cfg.Timeout)); err != nil {
			log.Debug(ctx, "close frame not sent", logger.Error(err))
		}
		select {
		case code = <-closed:
		case <-time.After(cfg.Timeout):
			code = websocket.CloseAbnormalClosure
		}
	}
	res.closeCode = code

	switch {
	case res.err != nil:
	case code == websocket.CloseNormalClosure:
	case code == websocket.ClosePolicyViolation:
		res.err = fmt.Errorf("%w: credential rejected (close %d)", ErrSession, code)
	default:
		res.err = fmt.Errorf("%w: closed with code %d", ErrSession, code)
	}
	log.Debug(ctx, "vehicle session finished",
		logger.Int("sent", res.sent),
		logger.Int("malformed", res.malformed),
		logger.Int("closeCode", code))
	return res
}

// streamFrames writes frames until done. early is true when the server
// closed the session first, in which case code is its close code.
func streamFrames(ctx context.Context, cfg *Config, conn *websocket.Conn, gen *Generator, res *vehicleResult, closed <-chan int) (code int, early bool) {
	for seq := 0; seq < cfg.Frames; seq++ {
		malformed := cfg.MalformedEvery > 0 && (seq+1)%cfg.MalformedEvery == 0

		var payload []byte
		if malformed {
			payload = gen.Malformed(seq)
		} else {
			frame, err := gen.Frame(seq)
			if err != nil {
				res.err = err
				return 0, false
			}
			payload = frame
		}

		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			select {
			case code := <-closed:
				return code, true
			case <-time.After(cfg.Timeout):
				return websocket.CloseAbnormalClosure, true
			}
		}
		res.sent++
		if malformed {
			res.malformed++
		} else {
			res.valid++
		}

		if seq == cfg.Frames-1 {
			break
		}
		select {
		case <-ctx.Done():
			return 0, false
		case code := <-closed:
			return code, true
		case <-time.After(cfg.Interval):
		}
	}
	return 0, false
}
