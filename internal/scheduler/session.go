package scheduler

import (
	"fmt"
	"time"

	"daybot/internal/config"
)

type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpen
	PhaseExitOnly
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseExitOnly:
		return "exit_only"
	default:
		return "closed"
	}
}

// Session is the trading day in exchange local time. Clock fields are
// minutes after midnight.
type Session struct {
	loc      *time.Location
	start    int
	end      int
	exitOnly int
}

func NewSession(cfg config.SessionConfig) (*Session, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("session timezone %q: %w", cfg.Timezone, err)
	}
	start, err := config.ParseClock(cfg.Start)
	if err != nil {
		return nil, err
	}
	end, err := config.ParseClock(cfg.End)
	if err != nil {
		return nil, err
	}
	exitOnly, err := config.ParseClock(cfg.ExitOnlyFrom)
	if err != nil {
		return nil, err
	}
	return &Session{loc: loc, start: start, end: end, exitOnly: exitOnly}, nil
}

func (s *Session) Location() *time.Location {
	return s.loc
}

// Phase classifies now. The start and end minutes are inclusive; outside them
// the reason names the boundary.
func (s *Session) Phase(now time.Time) (Phase, string) {
	sec := secondOfDay(now.In(s.loc))
	switch {
	case sec < s.start*60:
		return PhaseClosed, fmt.Sprintf("Market not open yet (opens at %s)", clock(s.start))
	case sec > s.end*60:
		return PhaseClosed, fmt.Sprintf("Market closed (closed at %s)", clock(s.end))
	case sec >= s.exitOnly*60:
		return PhaseExitOnly, ""
	default:
		return PhaseOpen, ""
	}
}

// ExitOnly reports whether new entries are over for the day, including after
// the close.
func (s *Session) ExitOnly(now time.Time) bool {
	return secondOfDay(now.In(s.loc)) >= s.exitOnly*60
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
