// Package session implements the guarded passthrough facade (component C)
// that sits between the turn controller and the transport-level connection.
package session

import (
	"log/slog"
	"sync"

	"github.com/northwing/recoadapter/pkg/fsm"
	"github.com/northwing/recoadapter/pkg/resolver"
)

// Conn is the transport-level session the facade wraps: something that can
// send a control message, write raw audio, flush, and drop-to-close. The
// concrete implementation (pkg/transport) dials a websocket; tests supply a
// recording fake.
type Conn interface {
	SendMessage(path string, payload []byte) error
	WriteAudio(b []byte) error
	FlushAudio() error
	Close() error
}

// EventSink receives every event a Conn's receive loop parses off the wire.
// The turn controller (pkg/adapter) implements this.
type EventSink interface {
	OnTurnStart(tag string)
	OnSpeechStartDetected(offsetTicks uint64)
	OnSpeechHypothesis(text string, offsetTicks, durationTicks uint64, json string, isTranslation bool, translations map[string]string)
	OnSpeechFragment(text string, offsetTicks, durationTicks uint64, json string, isTranslation bool, translations map[string]string)
	OnSpeechPhrase(msg PhraseMessage)
	OnSpeechEndDetected(offsetTicks uint64)
	OnTurnEnd()
	OnError(message string)
	OnUserMessage(path, contentType string, payload []byte)
	OnTranslationSynthesis(audio []byte)
	OnTranslationSynthesisEnd(status string)
}

// PhraseMessage is a final recognition result as delivered by the service,
// before the turn controller decides what to do with it.
type PhraseMessage struct {
	Text               string
	OffsetTicks        uint64
	DurationTicks      uint64
	RawJSON            string
	RecognitionSuccess bool
	IsTranslation      bool
	Translations       map[string]string
}

// Builder opens a new Conn against the resolved endpoint, wiring inbound
// events to sink.
type Builder interface {
	Open(res resolver.Resolution, sink EventSink) (Conn, error)
}

// Facade is component C. Every operation is a guarded passthrough: dropped
// silently (no error returned) when the protocol state is a bad state or no
// session is currently open. Transport-level failures surface later,
// asynchronously, through EventSink.OnError — never through these calls.
type Facade struct {
	mu   sync.Mutex
	conn Conn
	fsm  *fsm.Machine
	log  *slog.Logger
}

func New(machine *fsm.Machine, log *slog.Logger) *Facade {
	if log == nil {
		log = slog.Default()
	}
	return &Facade{fsm: machine, log: log.With(slog.String("component", "session"))}
}

// SetConn installs the transport-level connection once the resolver/builder
// has opened one. Passing nil detaches it without closing it; Term uses
// Destroy, which detaches and closes.
func (f *Facade) SetConn(c Conn) {
	f.mu.Lock()
	f.conn = c
	f.mu.Unlock()
}

func (f *Facade) HasConn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn != nil
}

func (f *Facade) SendControl(path string, payload []byte) {
	conn, ok := f.guardedConn()
	if !ok {
		return
	}
	if err := conn.SendMessage(path, payload); err != nil {
		f.log.Debug("send_control_failed", "path", path, "err", err)
	}
}

func (f *Facade) SendAudio(payload []byte) {
	conn, ok := f.guardedConn()
	if !ok {
		return
	}
	if err := conn.WriteAudio(payload); err != nil {
		f.log.Debug("send_audio_failed", "err", err)
	}
}

func (f *Facade) FlushAudio() {
	conn, ok := f.guardedConn()
	if !ok {
		return
	}
	if err := conn.FlushAudio(); err != nil {
		f.log.Debug("flush_audio_failed", "err", err)
	}
}

// Destroy closes and detaches the connection, e.g. on Term. Idempotent.
func (f *Facade) Destroy() {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (f *Facade) guardedConn() (Conn, bool) {
	if f.fsm.Current().Usp.IsBad() {
		return nil, false
	}
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return nil, false
	}
	return conn, true
}
