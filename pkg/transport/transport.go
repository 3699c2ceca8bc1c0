// Package transport is the concrete websocket binding for the session
// facade's Conn/Builder interfaces, modeled on the teacher's
// pkg/transports/twilio session: a dedicated writer goroutine draining a
// buffered send channel, and a separate reader goroutine dispatching
// parsed service events to an EventSink. Audio frames are written directly
// by WriteAudio rather than through the channel. A per-connection mutex
// serializes websocket writes and is held across each write; no lock is held
// across a sink invocation.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/northwing/recoadapter/pkg/errorsx"
	"github.com/northwing/recoadapter/pkg/resolver"
	"github.com/northwing/recoadapter/pkg/session"
)

// Config describes how to dial the recognition service when the resolver
// did not select a custom endpoint URL. Callers populate it field-by-field
// from a decoded configutil.Config (see cmd/recoadapter) rather than running
// it through mapstructure themselves.
type Config struct {
	DefaultBaseURL string
	Header         http.Header
	HandshakeWait  time.Duration
	SendQueueSize  int
}

func (c Config) withDefaults() Config {
	if c.HandshakeWait <= 0 {
		c.HandshakeWait = 10 * time.Second
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	return c
}

// Dialer is a session.Builder backed by gorilla/websocket.
type Dialer struct {
	cfg Config
	log *slog.Logger
}

func NewDialer(cfg Config, log *slog.Logger) *Dialer {
	if log == nil {
		log = slog.Default()
	}
	return &Dialer{cfg: cfg.withDefaults(), log: log.With(slog.String("component", "transport"))}
}

func (d *Dialer) Open(res resolver.Resolution, sink session.EventSink) (session.Conn, error) {
	url := d.resolveURL(res)
	header := d.cfg.Header
	if header == nil {
		header = http.Header{}
	}
	header = header.Clone()
	switch res.Auth {
	case resolver.AuthSubscriptionKey:
		header.Set("Ocp-Apim-Subscription-Key", res.AuthValue)
	case resolver.AuthToken:
		header.Set("Authorization", "Bearer "+res.AuthValue)
	case resolver.AuthRPSToken:
		header.Set("X-Rps-Token", res.AuthValue)
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.HandshakeWait}
	ws, _, err := dialer.DialContext(context.Background(), url, header)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTransportConnect)
	}

	conn := &wsConn{
		ws:      ws,
		sendCh:  make(chan []byte, d.cfg.SendQueueSize),
		sink:    sink,
		traceID: uuid.NewString(),
		log:     d.log,
	}
	go conn.writeLoop()
	go conn.readLoop()
	return conn, nil
}

// resolveURL turns a resolver.Resolution into the websocket URL to dial:
// the resolver's own URL for a custom endpoint, otherwise the dialer's
// configured default base plus a mode segment and, where relevant, a
// language/model query parameter.
func (d *Dialer) resolveURL(res resolver.Resolution) string {
	if res.CustomEndpoint {
		return res.URL
	}
	base := d.cfg.DefaultBaseURL
	if base == "" {
		base = "wss://speech.recognition.local/v1"
	}
	url := fmt.Sprintf("%s/%s", base, modeSegment(res.Mode))
	switch {
	case res.Endpoint == resolver.EndpointTranslation:
		url += fmt.Sprintf("?from=%s&to=%s", res.TranslationFrom, joinComma(res.TranslationTo))
	case res.Endpoint == resolver.EndpointCustomModel:
		url += "?model=" + res.ModelID
	case res.Language != "":
		url += "?language=" + res.Language
	}
	return url
}

func modeSegment(mode resolver.RecoMode) string {
	switch mode {
	case resolver.ModeConversation:
		return "conversation"
	case resolver.ModeDictation:
		return "dictation"
	default:
		return "interactive"
	}
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}

type wsConn struct {
	ws      *websocket.Conn
	sendCh  chan []byte
	sink    session.EventSink
	traceID string
	log     *slog.Logger

	mu     sync.Mutex
	closed atomic.Bool
}

// wireMessage is the envelope this adapter writes over the websocket for a
// path-named control message. Raw binary audio frames are sent directly,
// not wrapped in this envelope; inbound messages are read as serviceEvent.
type wireMessage struct {
	Path    string          `json:"path"`
	Payload json.RawMessage `json:"payload"`
}

func (c *wsConn) SendMessage(path string, payload []byte) error {
	msg, err := json.Marshal(wireMessage{Path: path, Payload: payload})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	return c.enqueue(msg)
}

func (c *wsConn) WriteAudio(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return nil
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	return nil
}

func (c *wsConn) FlushAudio() error {
	// The websocket connection has no internal buffering to flush beyond
	// what the OS socket layer does; nothing to do here.
	return nil
}

func (c *wsConn) enqueue(b []byte) error {
	if c.closed.Load() {
		return nil
	}
	select {
	case c.sendCh <- b:
		return nil
	default:
		return fmt.Errorf("transport send queue full")
	}
}

func (c *wsConn) writeLoop() {
	for msg := range c.sendCh {
		c.mu.Lock()
		err := c.ws.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
		if err != nil {
			c.log.Debug("write_loop_send_failed", "err", err)
		}
	}
}

func (c *wsConn) readLoop() {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.sink != nil {
				c.sink.OnError(err.Error())
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.dispatch(data)
	}
}

func (c *wsConn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.sendCh)
	}
	return c.ws.Close()
}

// serviceEvent is the envelope this adapter reads off the wire for every
// inbound service message. Parsing inbound JSON is otherwise out of scope
// for the turn controller (pkg/adapter) itself — it only sees the
// already-decoded fields below, matched on Event.
type serviceEvent struct {
	Event              string            `json:"event"`
	Tag                string            `json:"tag"`
	OffsetTicks        uint64            `json:"offset"`
	DurationTicks      uint64            `json:"duration"`
	Text               string            `json:"text"`
	RawJSON            string            `json:"json"`
	RecognitionSuccess bool              `json:"recognitionSuccess"`
	IsTranslation      bool              `json:"isTranslation"`
	Translations       map[string]string `json:"translations"`
	Path               string            `json:"path"`
	ContentType        string            `json:"contentType"`
	Payload            string            `json:"payload"`
	Message            string            `json:"message"`
	StatusEnd          bool              `json:"statusEnd"`
	Status             string            `json:"status"`
}

func (c *wsConn) dispatch(raw []byte) {
	if c.sink == nil {
		return
	}
	var evt serviceEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.sink.OnError("malformed service event: " + err.Error())
		return
	}
	switch evt.Event {
	case "turn.start":
		c.sink.OnTurnStart(evt.Tag)
	case "speech.startDetected":
		c.sink.OnSpeechStartDetected(evt.OffsetTicks)
	case "speech.hypothesis":
		c.sink.OnSpeechHypothesis(evt.Text, evt.OffsetTicks, evt.DurationTicks, evt.RawJSON, evt.IsTranslation, evt.Translations)
	case "speech.fragment":
		c.sink.OnSpeechFragment(evt.Text, evt.OffsetTicks, evt.DurationTicks, evt.RawJSON, evt.IsTranslation, evt.Translations)
	case "speech.phrase":
		c.sink.OnSpeechPhrase(session.PhraseMessage{
			Text:               evt.Text,
			OffsetTicks:        evt.OffsetTicks,
			DurationTicks:      evt.DurationTicks,
			RawJSON:            evt.RawJSON,
			RecognitionSuccess: evt.RecognitionSuccess,
			IsTranslation:      evt.IsTranslation,
			Translations:       evt.Translations,
		})
	case "speech.endDetected":
		c.sink.OnSpeechEndDetected(evt.OffsetTicks)
	case "turn.end":
		c.sink.OnTurnEnd()
	case "error":
		c.sink.OnError(evt.Message)
	case "response":
		c.sink.OnUserMessage(evt.Path, evt.ContentType, []byte(evt.Payload))
	case "translation.synthesis":
		c.sink.OnTranslationSynthesis([]byte(evt.Payload))
	case "translation.synthesisEnd":
		c.sink.OnTranslationSynthesisEnd(evt.Status)
	default:
		c.log.Warn("unhandled_service_event", "event", evt.Event)
	}
}
