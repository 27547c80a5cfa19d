package pid_test

import (
	"testing"

	"github.com/okian/obdstream/internal/domain/pid"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTable_Lookup(t *testing.T) {
	Convey("Given the default PID table", t, func() {
		table := pid.Default()

		Convey("When looking up decimal codes", func() {
			name, ok := table.Lookup("4")
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, pid.EngineLoad)

			name, ok = table.Lookup("12")
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, pid.RPM)
		})

		Convey("When looking up hex codes", func() {
			name, ok := table.Lookup("0x0C")
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, pid.RPM)

			name, ok = table.Lookup("0x5e")
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, pid.EngineFuelRate)
		})

		Convey("When looking up unknown or malformed codes", func() {
			for _, code := range []string{"999", "", "abc", "0x", "-4"} {
				_, ok := table.Lookup(code)
				So(ok, ShouldBeFalse)
			}
		})

		Convey("Then leading zeros and whitespace are tolerated", func() {
			name, ok := table.Lookup(" 013 ")
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, pid.Speed)
		})
	})
}

func TestTable_Positional(t *testing.T) {
	Convey("Given the default PID table", t, func() {
		table := pid.Default()

		Convey("Then positional order is fixed", func() {
			names := table.PositionalNames()
			So(len(names), ShouldEqual, pid.PositionalWidth)
			So(names[0], ShouldEqual, pid.EngineLoad)
			So(names[6], ShouldEqual, pid.RPM)
			So(names[7], ShouldEqual, pid.Speed)
			So(names[20], ShouldEqual, pid.EngineOilTemp)
		})

		Convey("And indexes outside the array are rejected", func() {
			_, ok := table.Positional(-1)
			So(ok, ShouldBeFalse)
			_, ok = table.Positional(pid.PositionalWidth)
			So(ok, ShouldBeFalse)
		})

		Convey("And every positional name resolves through its code", func() {
			for i := 0; i < pid.PositionalWidth; i++ {
				name, ok := table.Positional(i)
				So(ok, ShouldBeTrue)
				So(name, ShouldNotBeEmpty)
			}
		})

		Convey("And returned slices are copies", func() {
			names := table.Names()
			names[0] = "MUTATED"
			So(table.Names()[0], ShouldNotEqual, "MUTATED")
		})

		Convey("And codes line up with names in numeric order", func() {
			codes := table.Codes()
			names := table.Names()
			So(len(codes), ShouldEqual, len(names))
			So(codes[0], ShouldEqual, "4")
			So(codes[len(codes)-1], ShouldEqual, "94")
			for i, code := range codes {
				name, ok := table.Lookup(code)
				So(ok, ShouldBeTrue)
				So(name, ShouldEqual, names[i])
			}
		})

		Convey("And the full vocabulary is a superset of the positional one", func() {
			all := table.Names()
			So(len(all), ShouldEqual, table.Len())
			So(all, ShouldContain, pid.EngineFuelRate)
			for _, name := range table.PositionalNames() {
				So(all, ShouldContain, name)
			}
		})
	})
}
