package f1

import (
	"fmt"
	"time"
)

type SessionType string

const (
	SessionTypePractice         SessionType = "practice"
	SessionTypeQualifying       SessionType = "qualifying"
	SessionTypeSprintQualifying SessionType = "sprint_qualifying"
	SessionTypeSprint           SessionType = "sprint"
	SessionTypeRace             SessionType = "race"
)

func (s SessionType) Valid() bool {
	switch s {
	case SessionTypePractice, SessionTypeQualifying, SessionTypeSprintQualifying, SessionTypeSprint, SessionTypeRace:
		return true
	default:
		return false
	}
}

func (s SessionType) String() string {
	switch s {
	case SessionTypePractice:
		return "Practice"
	case SessionTypeQualifying:
		return "Qualifying"
	case SessionTypeSprintQualifying:
		return "Sprint Qualifying"
	case SessionTypeSprint:
		return "Sprint"
	case SessionTypeRace:
		return "Race"
	default:
		return "Unknown SessionType"
	}
}

// order is the position of the session type within a race weekend.
func (s SessionType) order() int {
	switch s {
	case SessionTypePractice:
		return 1
	case SessionTypeQualifying:
		return 2
	case SessionTypeSprintQualifying:
		return 3
	case SessionTypeSprint:
		return 4
	case SessionTypeRace:
		return 5
	default:
		return 6
	}
}

type SessionStatus string

const (
	SessionStatusScheduled   SessionStatus = "scheduled"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusUnavailable SessionStatus = "unavailable"
)

func (s SessionStatus) Valid() bool {
	return s == SessionStatusScheduled || s == SessionStatusCompleted || s == SessionStatusUnavailable
}

type Session struct {
	ID        int64         `json:"id"`
	EventID   int64         `json:"event_id"`
	Type      SessionType   `json:"type"`
	Name      string        `json:"name"`
	StartTime time.Time     `json:"start_time"`
	Status    SessionStatus `json:"status"`
	TotalLaps int           `json:"total_laps"`
}

func (s Session) String() string {
	return fmt.Sprintf("%s (#%d, %s, %s)", s.Name, s.ID, s.Type, s.Status)
}

// HasHappened reports whether the session was run, i.e. telemetry may exist for it.
func (s Session) HasHappened(now time.Time) bool {
	return s.Status == SessionStatusCompleted || (s.Status != SessionStatusUnavailable && !s.StartTime.After(now))
}

// SessionLess orders sessions of one event by start time, then by weekend order.
func SessionLess(a, b Session) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}

	if a.Type.order() != b.Type.order() {
		return a.Type.order() < b.Type.order()
	}

	return a.ID < b.ID
}
