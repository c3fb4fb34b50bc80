// Package session tracks good and bad posture frames across a start/stop session.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-posture/pkg/posture"
)

// State is the accumulator lifecycle state.
type State int

const (
	// Idle means no session is running; frames are discarded.
	Idle State = iota
	// Running means frames are being counted.
	Running
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Summary is the result of a finished session.
type Summary struct {
	GoodFrames uint64  `json:"good_frames"`
	BadFrames  uint64  `json:"bad_frames"`
	GoodPct    float64 `json:"good_pct"`
	BadPct     float64 `json:"bad_pct"`
}

// Total returns the number of counted frames.
func (s Summary) Total() uint64 {
	return s.GoodFrames + s.BadFrames
}

// Status is a point-in-time view of the accumulator.
type Status struct {
	State     State     `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Summary
}

// Accumulator counts posture verdicts for one session at a time.
// It is safe for concurrent use: a frame worker records while a control
// path starts and stops.
type Accumulator struct {
	mu sync.Mutex

	state      State
	sessionID  string
	goodFrames uint64
	badFrames  uint64
	startedAt  time.Time
	stoppedAt  time.Time
	last       Summary

	now func() time.Time
}

// New creates an idle accumulator with zero counters.
func New() *Accumulator {
	return &Accumulator{now: time.Now}
}

// Start begins a new session and resets the counters.
// While a session is already running it changes nothing and returns the
// running session's ID with started=false.
func (a *Accumulator) Start() (id string, started bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == Running {
		return a.sessionID, false
	}

	a.state = Running
	a.sessionID = uuid.NewString()
	a.goodFrames = 0
	a.badFrames = 0
	a.startedAt = a.now()
	a.stoppedAt = time.Time{}
	return a.sessionID, true
}

// RecordFrame counts v in the running session.
// It returns false, and counts nothing, while idle.
func (a *Accumulator) RecordFrame(v posture.Verdict) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recordLocked(v)
}

// RecordFrameFor counts v only if session id is the one running.
// A frame still in flight when its session stops is discarded even if a new
// session has started since.
func (a *Accumulator) RecordFrameFor(id string, v posture.Verdict) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessionID != id {
		return false
	}
	return a.recordLocked(v)
}

func (a *Accumulator) recordLocked(v posture.Verdict) bool {
	if a.state != Running {
		return false
	}
	if v.Slouching {
		a.badFrames++
	} else {
		a.goodFrames++
	}
	return true
}

// Stop ends the running session and returns its summary.
// Counters stay readable until the next Start. Stopping while idle returns
// the previous summary.
func (a *Accumulator) Stop() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked()
}

// StopSession stops the session only if id is the one running.
func (a *Accumulator) StopSession(id string) (Summary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Running || a.sessionID != id {
		return a.last, false
	}
	return a.stopLocked(), true
}

func (a *Accumulator) stopLocked() Summary {
	if a.state != Running {
		return a.last
	}

	a.state = Idle
	a.stoppedAt = a.now()
	a.last = summarize(a.goodFrames, a.badFrames)
	return a.last
}

// Running reports whether a session is in progress.
func (a *Accumulator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == Running
}

// RunningSession reports whether session id is the one in progress.
func (a *Accumulator) RunningSession(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == Running && a.sessionID == id
}

// Status returns the current state and counters with live percentages.
func (a *Accumulator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Status{
		State:     a.state,
		SessionID: a.sessionID,
		StartedAt: timePtr(a.startedAt),
		StoppedAt: timePtr(a.stoppedAt),
		Summary:   summarize(a.goodFrames, a.badFrames),
	}
}

// Summary returns the summary computed by the last Stop.
func (a *Accumulator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Bind returns a recorder tied to session id.
func (a *Accumulator) Bind(id string) Bound {
	return Bound{acc: a, id: id}
}

// Bound records frames for a single session.
type Bound struct {
	acc *Accumulator
	id  string
}

// RecordFrame counts v if the bound session is still running.
func (b Bound) RecordFrame(v posture.Verdict) bool {
	return b.acc.RecordFrameFor(b.id, v)
}

// Running reports whether the bound session is still running.
func (b Bound) Running() bool {
	return b.acc.RunningSession(b.id)
}

// SessionID returns the bound session.
func (b Bound) SessionID() string {
	return b.id
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func summarize(good, bad uint64) Summary {
	s := Summary{GoodFrames: good, BadFrames: bad}
	total := good + bad
	if total > 0 {
		s.GoodPct = round2(float64(good) / float64(total) * 100)
		s.BadPct = round2(float64(bad) / float64(total) * 100)
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
