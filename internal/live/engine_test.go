package live

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var testTarget = Target{
	SessionID:   "2024-bahrain-race",
	Drivers:     []string{"VER", "LEC", "HAM", "NOR"},
	TotalLaps:   5,
	BaseLapTime: 95 * time.Second,
	Latitude:    26.0325,
	Longitude:   50.5106,
}

func newTestEngine(t *testing.T) (*Engine, *Store) {
	t.Helper()

	store := NewStore()
	engine := NewEngine(store, 42, logrus.New())

	if err := engine.Track(testTarget); err != nil {
		t.Fatal(err)
	}

	return engine, store
}

func TestEngineTick(t *testing.T) {
	engine, store := newTestEngine(t)

	engine.tick("run")

	expected := []Key{
		"2024-bahrain-race/car/HAM",
		"2024-bahrain-race/car/LEC",
		"2024-bahrain-race/car/NOR",
		"2024-bahrain-race/car/VER",
		"2024-bahrain-race/session",
		"2024-bahrain-race/timing",
		"2024-bahrain-race/track_status",
		"2024-bahrain-race/weather",
	}

	keys := store.Keys()

	if len(keys) != len(expected) {
		t.Fatalf("unexpected keys %v", keys)
	}

	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("expected key %s, got %s", expected[i], keys[i])
		}
	}

	for i := 0; i < 10; i++ {
		engine.tick("run")
	}

	entry, _ := store.Get("2024-bahrain-race/session")
	state := entry.Value.(SessionState)

	if state.CurrentLap != testTarget.TotalLaps || !state.Finished {
		t.Errorf("session should stop at its last lap: %+v", state)
	}

	entry, _ = store.Get("2024-bahrain-race/timing")
	timing := entry.Value.(Timing)

	for i, line := range timing.Lines {
		if line.Position != i+1 || line.Lap != testTarget.TotalLaps {
			t.Errorf("unexpected timing line %+v", line)
		}

		if i > 0 && line.Gap < timing.Lines[i-1].Gap {
			t.Errorf("timing is not ordered: %+v", timing.Lines)
		}
	}

	entry, _ = store.Get("2024-bahrain-race/weather")

	if entry.Generation != 11 {
		t.Errorf("expected a weather update every tick, got generation %d", entry.Generation)
	}
}

func TestEngineBadKeysAreSkipped(t *testing.T) {
	store := NewStore()
	engine := NewEngine(store, 7, logrus.New())

	target := testTarget
	target.Drivers = []string{"VER", "bad driver/id"}

	if err := engine.Track(target); err != nil {
		t.Fatal(err)
	}

	engine.tick("run")

	if _, ok := store.Get("2024-bahrain-race/car/VER"); !ok {
		t.Error("valid car key was not written")
	}

	if _, ok := store.Get("2024-bahrain-race/timing"); !ok {
		t.Error("timing was not written")
	}

	if len(store.Keys()) != 5 {
		t.Errorf("unexpected keys %v", store.Keys())
	}
}

func TestEngineTrackRejectsInvalidTargets(t *testing.T) {
	engine := NewEngine(NewStore(), 1, logrus.New())

	invalid := []Target{
		{SessionID: "race/1", Drivers: []string{"VER"}, TotalLaps: 1, BaseLapTime: time.Minute},
		{SessionID: "race", TotalLaps: 1, BaseLapTime: time.Minute},
		{SessionID: "race", Drivers: []string{"VER"}, BaseLapTime: time.Minute},
		{SessionID: "race", Drivers: []string{"VER"}, TotalLaps: 1},
	}

	for _, target := range invalid {
		if err := engine.Track(target); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("expected ErrInvalidTarget for %+v, got %v", target, err)
		}
	}

	if len(engine.Targets()) != 0 {
		t.Errorf("invalid targets were tracked: %v", engine.Targets())
	}
}

func TestEngineStartStop(t *testing.T) {
	engine, store := newTestEngine(t)

	if engine.State() != Stopped {
		t.Fatal("a new engine should be stopped")
	}

	if state := engine.Stop(); state != Stopped {
		t.Errorf("stopping a stopped engine returned %s", state)
	}

	if state := engine.Start(5 * time.Millisecond); state != Running {
		t.Fatalf("expected running, got %s", state)
	}

	if state := engine.Start(time.Hour); state != Running || engine.Interval() != 5*time.Millisecond {
		t.Errorf("second start changed the engine: %s every %s", state, engine.Interval())
	}

	time.Sleep(30 * time.Millisecond)

	if state := engine.Stop(); state != Stopped {
		t.Fatalf("expected stopped, got %s", state)
	}

	before, ok := store.Get("2024-bahrain-race/session")

	if !ok {
		t.Fatal("no session state written while running")
	}

	time.Sleep(20 * time.Millisecond)

	if after, _ := store.Get("2024-bahrain-race/session"); after.Generation != before.Generation {
		t.Error("the engine kept writing after stop returned")
	}

	engine.Start(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	engine.Stop()

	after, _ := store.Get("2024-bahrain-race/session")

	if after.Generation <= before.Generation {
		t.Errorf("generation did not resume after restart: %d then %d", before.Generation, after.Generation)
	}

	if after.Value.(SessionState).CurrentLap < before.Value.(SessionState).CurrentLap {
		t.Error("simulation progress was lost across stop and start")
	}
}

func TestEngineRetargetKeepsProgress(t *testing.T) {
	engine, store := newTestEngine(t)

	engine.tick("run")
	engine.tick("run")

	target := testTarget
	target.Drivers = append([]string{"PIA"}, testTarget.Drivers...)
	target.TotalLaps = 10

	if err := engine.Track(target); err != nil {
		t.Fatal(err)
	}

	engine.tick("run")

	entry, _ := store.Get("2024-bahrain-race/session")

	if state := entry.Value.(SessionState); state.CurrentLap != 3 || state.TotalLaps != 10 {
		t.Errorf("unexpected state after retarget %+v", state)
	}

	if targets := engine.Targets(); len(targets) != 1 || len(targets[0].Drivers) != 5 {
		t.Errorf("unexpected targets %+v", targets)
	}
}

func TestEngineRetargetAfterFinish(t *testing.T) {
	engine, store := newTestEngine(t)

	for i := 0; i < testTarget.TotalLaps+1; i++ {
		engine.tick("run")
	}

	entry, _ := store.Get("2024-bahrain-race/session")

	if state := entry.Value.(SessionState); !state.Finished || state.CurrentLap != testTarget.TotalLaps {
		t.Fatalf("expected a finished race on lap %d, got %+v", testTarget.TotalLaps, state)
	}

	t.Run("Longer race resumes", func(t *testing.T) {
		target := testTarget
		target.TotalLaps = 10

		if err := engine.Track(target); err != nil {
			t.Fatal(err)
		}

		engine.tick("run")

		entry, _ := store.Get("2024-bahrain-race/session")

		if state := entry.Value.(SessionState); state.Finished || state.CurrentLap != 6 || state.TotalLaps != 10 {
			t.Errorf("expected the race to resume on lap 6 of 10, got %+v", state)
		}
	})

	t.Run("Shorter race ends", func(t *testing.T) {
		target := testTarget
		target.TotalLaps = 3

		if err := engine.Track(target); err != nil {
			t.Fatal(err)
		}

		engine.tick("run")

		entry, _ := store.Get("2024-bahrain-race/session")

		if state := entry.Value.(SessionState); !state.Finished || state.CurrentLap != 6 {
			t.Errorf("expected the race to stay finished on lap 6, got %+v", state)
		}
	})
}
