package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybot/internal/config"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(config.SessionConfig{
		Timezone:     "Asia/Kolkata",
		Start:        "09:15",
		End:          "15:15",
		ExitOnlyFrom: "15:00",
	})
	require.NoError(t, err)
	return s
}

func TestSession_Phase(t *testing.T) {
	s := newSession(t)
	loc := s.Location()
	at := func(h, m, sec int) time.Time { return time.Date(2026, 10, 15, h, m, sec, 0, loc) }

	cases := []struct {
		name   string
		now    time.Time
		phase  Phase
		reason string
	}{
		{"before open", at(9, 14, 59), PhaseClosed, "Market not open yet (opens at 09:15)"},
		{"at open", at(9, 15, 0), PhaseOpen, ""},
		{"midday", at(12, 0, 0), PhaseOpen, ""},
		{"exit only starts", at(15, 0, 0), PhaseExitOnly, ""},
		{"at close", at(15, 15, 0), PhaseExitOnly, ""},
		{"after close", at(15, 15, 1), PhaseClosed, "Market closed (closed at 15:15)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			phase, reason := s.Phase(tc.now)
			assert.Equal(t, tc.phase, phase)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestSession_UsesExchangeTimezone(t *testing.T) {
	s := newSession(t)
	// 04:00 UTC is 09:30 in Kolkata.
	phase, _ := s.Phase(time.Date(2026, 10, 15, 4, 0, 0, 0, time.UTC))
	assert.Equal(t, PhaseOpen, phase)
	assert.True(t, s.ExitOnly(time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)), "15:30 local is past exit-only")
	assert.False(t, s.ExitOnly(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))
}

func TestNewSession_Invalid(t *testing.T) {
	_, err := NewSession(config.SessionConfig{Timezone: "Mars/Base", Start: "09:15", End: "15:15", ExitOnlyFrom: "15:00"})
	assert.Error(t, err)
	_, err = NewSession(config.SessionConfig{Timezone: "UTC", Start: "9am", End: "15:15", ExitOnlyFrom: "15:00"})
	assert.Error(t, err)
}

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func TestLoop_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop(time.Minute)
	l.after = immediate

	runs := 0
	err := l.Run(ctx, func(context.Context) error {
		runs++
		if runs == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, runs)
}

func TestLoop_StopsOnTaskError(t *testing.T) {
	l := NewLoop(time.Minute)
	l.after = immediate
	boom := errors.New("ledger write failed")

	runs := 0
	err := l.Run(context.Background(), func(context.Context) error {
		runs++
		if runs == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, runs)
}

func TestLoop_NextTimesAligned(t *testing.T) {
	l := NewLoop(time.Minute)
	now := time.Date(2026, 10, 15, 10, 2, 30, 0, time.UTC)
	wakeAt, wait := l.nextTimes(now)
	assert.Equal(t, time.Date(2026, 10, 15, 10, 3, 0, 0, time.UTC), wakeAt)
	assert.Equal(t, 30*time.Second, wait)
}
