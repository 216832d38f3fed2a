package f1

import (
	"testing"
	"time"
)

func TestParseLapTime(t *testing.T) {
	for _, test := range []struct {
		in       string
		expected time.Duration
		err      bool
	}{
		{"1:31.447", time.Minute + 31*time.Second + 447*time.Millisecond, false},
		{"91.447", 91*time.Second + 447*time.Millisecond, false},
		{"1m31.447s", time.Minute + 31*time.Second + 447*time.Millisecond, false},
		{"", 0, false},
		{"1:75.000", 0, true},
		{"-1:30.000", 0, true},
		{"fast", 0, true},
	} {
		t.Run(test.in, func(t *testing.T) {
			d, err := ParseLapTime(test.in)

			if test.err {
				if err == nil {
					t.Errorf("expected an error parsing %q, got %s", test.in, d)
				}

				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if d != test.expected {
				t.Errorf("expected %s, got %s", test.expected, d)
			}
		})
	}
}

func TestFormatLapTime(t *testing.T) {
	if s := FormatLapTime(time.Minute + 31*time.Second + 447*time.Millisecond); s != "1:31.447" {
		t.Errorf("unexpected lap time: %s", s)
	}

	if s := FormatLapTime(0); s != "-" {
		t.Errorf("expected a dash for an empty lap time, got %s", s)
	}
}

func TestSortLaps(t *testing.T) {
	laps := []LapRecord{
		{DriverID: "VER", LapNumber: 2},
		{DriverID: "LEC", LapNumber: 2},
		{DriverID: "VER", LapNumber: 1},
		{DriverID: "LEC", LapNumber: 1},
	}

	SortLaps(laps)

	expected := []struct {
		driver string
		lap    int
	}{{"LEC", 1}, {"LEC", 2}, {"VER", 1}, {"VER", 2}}

	for i, lap := range laps {
		if lap.DriverID != expected[i].driver || lap.LapNumber != expected[i].lap {
			t.Logf("position %d: expected %s lap %d, got %s", i, expected[i].driver, expected[i].lap, lap)
			t.Fail()
		}
	}
}
