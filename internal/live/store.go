// Package live holds the pollable live-state store and the simulation engine
// that writes to it.
package live

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/metrics"
)

var ErrMalformedKey = errors.New("live: malformed key")

const maxKeyLength = 200

// Key addresses one live value, as "<session>/<metric>[/<sub>...]".
type Key string

func NewKey(sessionID string, parts ...string) (Key, error) {
	key := Key(strings.Join(append([]string{sessionID}, parts...), "/"))

	if err := key.Validate(); err != nil {
		return "", err
	}

	return key, nil
}

func validSegment(segment string) bool {
	if segment == "" {
		return false
	}

	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}

	return true
}

func (k Key) Validate() error {
	if len(k) > maxKeyLength {
		return errors.Wrapf(ErrMalformedKey, "%.20s... is too long", k)
	}

	segments := strings.Split(string(k), "/")

	if len(segments) < 2 {
		return errors.Wrapf(ErrMalformedKey, "%q needs a session and a metric", k)
	}

	for _, segment := range segments {
		if !validSegment(segment) {
			return errors.Wrapf(ErrMalformedKey, "%q has an invalid segment %q", k, segment)
		}
	}

	return nil
}

func (k Key) Session() string {
	session, _, _ := strings.Cut(string(k), "/")

	return session
}

// Entry is immutable once published: value, generation and timestamp are
// always read together.
type Entry struct {
	Key        Key         `json:"key"`
	Value      interface{} `json:"value"`
	Generation uint64      `json:"generation"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type slot struct {
	entry atomic.Pointer[Entry]
}

// Store is a map of the latest entry per key. Readers never block the writer;
// entries are replaced, never deleted.
type Store struct {
	slots sync.Map
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

func (s *Store) Get(key Key) (Entry, bool) {
	value, ok := s.slots.Load(key)

	if !ok {
		return Entry{}, false
	}

	entry := value.(*slot).entry.Load()

	if entry == nil {
		return Entry{}, false
	}

	return *entry, true
}

// Set publishes value under key with the next generation. value must not be
// modified after it is passed in.
func (s *Store) Set(key Key, value interface{}) (Entry, error) {
	if err := key.Validate(); err != nil {
		return Entry{}, err
	}

	loaded, _ := s.slots.LoadOrStore(key, &slot{})
	current := loaded.(*slot)

	for {
		previous := current.entry.Load()

		next := &Entry{
			Key:        key,
			Value:      value,
			Generation: 1,
			UpdatedAt:  s.now(),
		}

		if previous != nil {
			next.Generation = previous.Generation + 1
		}

		if current.entry.CompareAndSwap(previous, next) {
			metrics.LiveStoreWrites.Inc()

			return *next, nil
		}
	}
}

// Snapshot returns the entries of the given keys, or of every key when none
// is given. Unknown keys are left out.
func (s *Store) Snapshot(keys ...Key) map[Key]Entry {
	out := make(map[Key]Entry)

	if len(keys) == 0 {
		s.slots.Range(func(k, v interface{}) bool {
			if entry := v.(*slot).entry.Load(); entry != nil {
				out[k.(Key)] = *entry
			}

			return true
		})

		return out
	}

	for _, key := range keys {
		if entry, ok := s.Get(key); ok {
			out[key] = entry
		}
	}

	return out
}

// Keys lists every key, sorted.
func (s *Store) Keys() []Key {
	var keys []Key

	s.slots.Range(func(k, v interface{}) bool {
		if v.(*slot).entry.Load() != nil {
			keys = append(keys, k.(Key))
		}

		return true
	})

	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})

	return keys
}

// SessionSnapshot returns every entry of one session.
func (s *Store) SessionSnapshot(sessionID string) map[Key]Entry {
	out := make(map[Key]Entry)

	s.slots.Range(func(k, v interface{}) bool {
		key := k.(Key)

		if key.Session() != sessionID {
			return true
		}

		if entry := v.(*slot).entry.Load(); entry != nil {
			out[key] = *entry
		}

		return true
	})

	return out
}
