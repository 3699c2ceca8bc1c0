// Package fsm holds the two-axis (audio_state, usp_state) pair that is the
// single source of truth for when the turn controller may send audio, send
// control messages, fire results, tear down, or drop a stimulus.
//
// Every mutation goes through Machine.Change (or one of its shorthands); no
// other code may assign the pair directly, mirroring the source's single
// ChangeState primitive guarded by one reader/writer lock.
package fsm

import (
	"log/slog"
	"sync"
)

type AudioState int

const (
	AudioIdle AudioState = iota
	AudioReady
	AudioSending
	AudioStopping
)

func (s AudioState) String() string {
	switch s {
	case AudioIdle:
		return "Idle"
	case AudioReady:
		return "Ready"
	case AudioSending:
		return "Sending"
	case AudioStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

type UspState int

const (
	UspIdle UspState = iota
	UspWaitingForTurnStart
	UspWaitingForPhrase
	UspWaitingForIntent
	UspWaitingForIntent2
	UspWaitingForTurnEnd
	UspError
	UspTerminating
	UspZombie
)

func (s UspState) String() string {
	switch s {
	case UspIdle:
		return "Idle"
	case UspWaitingForTurnStart:
		return "WaitingForTurnStart"
	case UspWaitingForPhrase:
		return "WaitingForPhrase"
	case UspWaitingForIntent:
		return "WaitingForIntent"
	case UspWaitingForIntent2:
		return "WaitingForIntent2"
	case UspWaitingForTurnEnd:
		return "WaitingForTurnEnd"
	case UspError:
		return "Error"
	case UspTerminating:
		return "Terminating"
	case UspZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// IsBad reports whether s is one of the three states every ingress path
// must test for before attempting a transition.
func (s UspState) IsBad() bool {
	return s == UspError || s == UspTerminating || s == UspZombie
}

// Pair is the adapter's entire state: audio-side and protocol-side.
type Pair struct {
	Audio AudioState
	Usp   UspState
}

// Machine guards a Pair behind a single reader/writer lock. Writers are any
// state transition; readers are ingress paths that only need to observe the
// current pair before firing a site callback (hypothesis, user-message
// dispatch) so that they don't block concurrent audio writes.
type Machine struct {
	mu      sync.RWMutex
	current Pair
	log     *slog.Logger
}

// New returns a Machine starting at (Idle, Idle).
func New(log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{current: Pair{Audio: AudioIdle, Usp: UspIdle}, log: log.With(slog.String("component", "fsm"))}
}

// Current returns the live state pair under a read lock.
func (m *Machine) Current() Pair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// RLock/RUnlock expose the reader side of the lock. The turn controller does
// not call them: its read-only ingress paths (speech_hypothesis,
// user_message dispatch) observe the pair through Current, which holds the
// read lock only for the read itself.
func (m *Machine) RLock()   { m.mu.RLock() }
func (m *Machine) RUnlock() { m.mu.RUnlock() }

// Change is the single transition primitive. It succeeds and commits the
// transition iff the current pair equals (fromAudio, fromUsp) and the
// bad-state precondition holds; otherwise it leaves the pair untouched and
// returns false.
func (m *Machine) Change(fromAudio AudioState, fromUsp UspState, toAudio AudioState, toUsp UspState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changeLocked(fromAudio, fromUsp, toAudio, toUsp)
}

func (m *Machine) changeLocked(fromAudio AudioState, fromUsp UspState, toAudio AudioState, toUsp UspState) bool {
	if m.current.Audio != fromAudio || m.current.Usp != fromUsp {
		return false
	}
	if !badStateExempt(fromUsp, toUsp) {
		return false
	}
	m.current = Pair{Audio: toAudio, Usp: toUsp}
	return true
}

// badStateExempt implements precondition 2 of spec §4.F: from_usp must not
// be a bad state, unless the transition is a self-loop, Error->Terminating,
// or Terminating->Zombie.
func badStateExempt(fromUsp, toUsp UspState) bool {
	if !fromUsp.IsBad() {
		return true
	}
	if fromUsp == toUsp {
		return true
	}
	if fromUsp == UspError && toUsp == UspTerminating {
		return true
	}
	if fromUsp == UspTerminating && toUsp == UspZombie {
		return true
	}
	return false
}

// ChangeUspTo is the "change_state(to_usp)" shorthand: transition the usp
// axis to toUsp from whatever it currently is, leaving audio_state as-is.
// Because the read of the current pair and the transition happen under the
// same write lock, the "from" half of the precondition is trivially
// satisfied; only the bad-state gate can still reject it.
func (m *Machine) ChangeUspTo(toUsp UspState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changeLocked(m.current.Audio, m.current.Usp, m.current.Audio, toUsp)
}

// ChangeAudio transitions only the audio axis, from an explicit fromAudio,
// leaving usp_state as-is.
func (m *Machine) ChangeAudio(fromAudio, toAudio AudioState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changeLocked(fromAudio, m.current.Usp, toAudio, m.current.Usp)
}

// ChangeUsp transitions only the usp axis, from an explicit fromUsp,
// leaving audio_state as-is.
func (m *Machine) ChangeUsp(fromUsp, toUsp UspState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changeLocked(m.current.Audio, fromUsp, m.current.Audio, toUsp)
}

// DropIfBad logs and returns true if the usp axis is currently a bad state;
// every event-ingress path calls this first and returns without attempting
// a transition when it reports true.
func (m *Machine) DropIfBad(event string) bool {
	m.mu.RLock()
	usp := m.current.Usp
	m.mu.RUnlock()
	if usp.IsBad() {
		m.log.Warn("dropped_in_bad_state", "event", event, "usp_state", usp.String())
		return true
	}
	return false
}

// LogUnexpected records a stimulus that arrived in a state with no
// declared handler. It only logs; no error value is built or returned.
func (m *Machine) LogUnexpected(event string) {
	pair := m.Current()
	m.log.Warn("dropped_unexpected_transition", "event", event, "audio_state", pair.Audio.String(), "usp_state", pair.Usp.String())
}
