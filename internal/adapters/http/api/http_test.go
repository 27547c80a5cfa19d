package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/obdstream/internal/adapters/http/api"
	"github.com/okian/obdstream/internal/domain/model"
	"github.com/okian/obdstream/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDependencies struct {
	samples   []model.Sample
	selectErr error
	deleteErr error
	pingErr   error
	hello     any
	deleted   int
}

func (m *mockDependencies) SelectAll(ctx context.Context) ([]model.Sample, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	return m.samples, nil
}

func (m *mockDependencies) DeleteAll(ctx context.Context) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := int64(len(m.samples))
	m.samples = nil
	m.deleted++
	return n, nil
}

func (m *mockDependencies) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockDependencies) Hello(ctx context.Context) (any, error) {
	return m.hello, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux(deps *mockDependencies) *http.ServeMux {
	sessions := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	stats := &mockStatsProvider{stats: map[string]interface{}{"started": true, "schema": "obd"}}
	mux := http.NewServeMux()
	api.NewServer(deps, stats, sessions).Register(context.Background(), mux)
	return mux
}

func serve(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{
			samples: []model.Sample{
				{ID: 1, Timestamp: 1_700_000_000_000, VIN: "V1", Signals: map[string]float64{"RPM": 812.5}},
				{ID: 2, Timestamp: 1_700_000_000_250, VIN: "V1", BatteryVoltage: model.Float64(12.34)},
			},
			hello: map[string]any{"service": "obdstream"},
		}
		mux := newTestMux(deps)

		Convey("When requesting GET /samples", func() {
			w := serve(mux, http.MethodGet, "/samples")

			Convey("Then every sample is returned in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")

				var out []model.Sample
				So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
				So(len(out), ShouldEqual, 2)
				So(out[0].Signals["RPM"], ShouldEqual, 812.5)
				So(*out[1].BatteryVoltage, ShouldEqual, 12.34)
			})
		})

		Convey("When requesting GET /samples on an empty store", func() {
			deps.samples = nil
			w := serve(mux, http.MethodGet, "/samples")

			Convey("Then an empty JSON array is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When requesting DELETE /samples", func() {
			w := serve(mux, http.MethodDelete, "/samples")

			Convey("Then the deleted count is reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"deleted":2}`)
				So(deps.deleted, ShouldEqual, 1)
			})
		})

		Convey("When using an unsupported method on /samples", func() {
			w := serve(mux, http.MethodPost, "/samples")

			Convey("Then 405 is returned with the allowed methods", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, "GET, DELETE")
			})
		})

		Convey("When the store fails", func() {
			deps.selectErr = errors.New("connection refused")
			w := serve(mux, http.MethodGet, "/samples")

			Convey("Then 500 is returned with the error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, "internal_error")
				So(w.Body.String(), ShouldContainSubstring, "connection refused")
			})
		})

		Convey("When the request is cancelled mid-query", func() {
			deps.deleteErr = context.Canceled
			w := serve(mux, http.MethodDelete, "/samples")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When requesting /healthz with a reachable store", func() {
			w := serve(mux, http.MethodGet, "/healthz")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("When requesting /healthz with an unreachable store", func() {
			deps.pingErr = errors.New("dial tcp: timeout")
			w := serve(mux, http.MethodGet, "/healthz")

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, "store unreachable")
		})

		Convey("When requesting /stats", func() {
			w := serve(mux, http.MethodGet, "/stats")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"schema":"obd"`)
		})

		Convey("When requesting /", func() {
			w := serve(mux, http.MethodGet, "/")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"service":"obdstream"`)
		})

		Convey("When requesting an unknown path", func() {
			w := serve(mux, http.MethodGet, "/unknown")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When requesting /ws", func() {
			w := serve(mux, http.MethodGet, "/ws")

			Convey("Then the session handler is reached unwrapped", func() {
				So(w.Code, ShouldEqual, http.StatusSwitchingProtocols)
			})
		})

		Convey("When requesting /metrics after some traffic", func() {
			serve(mux, http.MethodGet, "/samples")
			w := serve(mux, http.MethodGet, "/metrics")

			Convey("Then HTTP metrics are exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
			})
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped by the metrics middleware", t, func() {
		handler := api.MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}, "teapot")

		Convey("When it is called", func() {
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/teapot", http.NoBody))

			Convey("Then the response passes through untouched", func() {
				So(w.Code, ShouldEqual, http.StatusTeapot)
				So(w.Body.String(), ShouldEqual, "short and stout")
				So(metrics.GetRegistry(), ShouldNotBeNil)
			})
		})
	})
}
