package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/northwing/recoadapter/pkg/resolver"
	"github.com/northwing/recoadapter/pkg/session"
)

type recordingSink struct {
	turnStarts []string
	phrases    []session.PhraseMessage
	errors     []string
}

func (s *recordingSink) OnTurnStart(tag string)      { s.turnStarts = append(s.turnStarts, tag) }
func (s *recordingSink) OnSpeechStartDetected(uint64) {}
func (s *recordingSink) OnSpeechHypothesis(string, uint64, uint64, string, bool, map[string]string) {
}
func (s *recordingSink) OnSpeechFragment(string, uint64, uint64, string, bool, map[string]string) {
}
func (s *recordingSink) OnSpeechPhrase(msg session.PhraseMessage) { s.phrases = append(s.phrases, msg) }
func (s *recordingSink) OnSpeechEndDetected(uint64)               {}
func (s *recordingSink) OnTurnEnd()                               {}
func (s *recordingSink) OnError(message string)                  { s.errors = append(s.errors, message) }
func (s *recordingSink) OnUserMessage(string, string, []byte)    {}
func (s *recordingSink) OnTranslationSynthesis([]byte)           {}
func (s *recordingSink) OnTranslationSynthesisEnd(string)        {}

func TestDialAndDispatchTurnStart(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"turn.start","tag":"svc1"}`))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	dialer := NewDialer(Config{DefaultBaseURL: wsURL}, nil)
	sink := &recordingSink{}

	res := resolver.Resolution{CustomEndpoint: true, URL: wsURL}
	conn, err := dialer.Open(res, sink)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for len(sink.turnStarts) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(sink.turnStarts) != 1 || sink.turnStarts[0] != "svc1" {
		t.Fatalf("expected turn_start(svc1) dispatched, got %v", sink.turnStarts)
	}
}
