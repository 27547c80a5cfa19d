package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	convey.Convey("Given the simulate command", t, func() {
		convey.Convey("When asked for help", func() {
			convey.So(run([]string{"--help"}), convey.ShouldEqual, 0)
		})

		convey.Convey("When given an unknown flag", func() {
			convey.So(run([]string{"--bogus"}), convey.ShouldEqual, 2)
		})

		convey.Convey("When given an unknown dialect", func() {
			convey.So(run([]string{"--dialect", "morse", "--log-format", "json"}), convey.ShouldEqual, 2)
		})

		convey.Convey("When the service is unhealthy", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			code := run([]string{"--url", srv.URL + "/", "--token", "s3cret", "--timeout", "1s"})
			convey.So(code, convey.ShouldEqual, 1)
		})
	})
}

func TestDialectList(t *testing.T) {
	convey.Convey("Given the dialect list", t, func() {
		convey.So(dialectList(), convey.ShouldEqual, "coded, positional, flat, text")
	})
}
