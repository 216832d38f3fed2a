package live

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
)

func TestKeyValidate(t *testing.T) {
	keys := []struct {
		key   Key
		valid bool
	}{
		{"2024-bahrain-race/timing", true},
		{"sim_1/car/VER", true},
		{"2024-bahrain-race", false},
		{"", false},
		{"race//timing", false},
		{"race/timing/", false},
		{"race/car/VER 1", false},
		{"race/car/Pérez", false},
	}

	for _, test := range keys {
		t.Run(string(test.key), func(t *testing.T) {
			err := test.key.Validate()

			if test.valid && err != nil {
				t.Errorf("expected %q to be valid, got %s", test.key, err)
			}

			if !test.valid && !errors.Is(err, ErrMalformedKey) {
				t.Errorf("expected %q to be malformed, got %v", test.key, err)
			}
		})
	}
}

func TestStoreSet(t *testing.T) {
	store := NewStore()

	if _, ok := store.Get("race/timing"); ok {
		t.Error("empty store returned an entry")
	}

	for i := 1; i <= 3; i++ {
		entry, err := store.Set("race/timing", i)

		if err != nil {
			t.Fatal(err)
		}

		if entry.Generation != uint64(i) || entry.Value != i {
			t.Errorf("unexpected entry %+v", entry)
		}
	}

	if _, err := store.Set("race", 1); !errors.Is(err, ErrMalformedKey) {
		t.Errorf("expected ErrMalformedKey, got %v", err)
	}

	_, _ = store.Set("race/weather", "dry")
	_, _ = store.Set("quali/weather", "wet")

	if snapshot := store.Snapshot(); len(snapshot) != 3 {
		t.Errorf("expected 3 entries, got %v", snapshot)
	}

	snapshot := store.Snapshot("race/weather", "race/unknown")

	if len(snapshot) != 1 || snapshot["race/weather"].Value != "dry" {
		t.Errorf("unexpected snapshot %v", snapshot)
	}

	if keys := store.Keys(); len(keys) != 3 || keys[0] != "quali/weather" {
		t.Errorf("unexpected keys %v", keys)
	}

	if session := store.SessionSnapshot("race"); len(session) != 2 {
		t.Errorf("unexpected session snapshot %v", session)
	}
}

type pair struct {
	A, B uint64
}

func TestStoreNoTornReads(t *testing.T) {
	store := NewStore()
	key := Key("race/pair")

	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
	)

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			var last uint64

			for {
				select {
				case <-stop:
					return
				default:
				}

				for _, entry := range store.Snapshot(key) {
					value := entry.Value.(pair)

					if value.A != value.B || value.A != entry.Generation {
						t.Errorf("torn read: generation %d with value %+v", entry.Generation, value)
						return
					}

					if entry.Generation < last {
						t.Errorf("generation went backwards from %d to %d", last, entry.Generation)
						return
					}

					last = entry.Generation
				}
			}
		}()
	}

	for i := uint64(1); i <= 5000; i++ {
		if _, err := store.Set(key, pair{A: i, B: i}); err != nil {
			t.Fatal(err)
		}
	}

	close(stop)
	wg.Wait()
}

func TestStoreConcurrentWritersKeepGenerationsUnique(t *testing.T) {
	store := NewStore()

	var (
		wg    sync.WaitGroup
		mutex sync.Mutex
		seen  = make(map[uint64]bool)
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 200; j++ {
				entry, err := store.Set("race/timing", j)

				if err != nil {
					t.Error(err)
					return
				}

				mutex.Lock()

				if seen[entry.Generation] {
					t.Errorf("generation %d published twice", entry.Generation)
				}

				seen[entry.Generation] = true
				mutex.Unlock()
			}
		}()
	}

	wg.Wait()

	if entry, _ := store.Get("race/timing"); entry.Generation != 1600 {
		t.Errorf("expected generation 1600, got %d", entry.Generation)
	}
}
