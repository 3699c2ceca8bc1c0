package correlator

import (
	"testing"

	"github.com/northwing/recoadapter/pkg/site"
)

type fakeResults struct{}

func (fakeResults) CreateIntermediate(text string, offset, duration uint64, json string) site.Result {
	return fakeResult{"intermediate"}
}
func (fakeResults) CreateFinal(text string, offset, duration uint64, json, luisJSON string) site.Result {
	return fakeResult{"final:" + text + ":" + luisJSON}
}
func (fakeResults) CreateTranslationIntermediate(text string, offset, duration uint64, translations map[string]string) site.Result {
	return fakeResult{"translation_intermediate"}
}
func (fakeResults) CreateTranslationFinal(text string, offset, duration uint64, translations map[string]string, luisJSON string) site.Result {
	return fakeResult{"translation_final"}
}
func (fakeResults) CreateTranslationSynthesis(audio []byte, statusEnd bool) site.Result {
	return fakeResult{"translation_synthesis"}
}

type fakeResult struct{ kind string }

func (r fakeResult) Kind() string { return r.kind }

type fakeSink struct {
	finals []site.Result
}

func (s *fakeSink) StartingTurn()                                     {}
func (s *fakeSink) StartedTurn(tag string)                            {}
func (s *fakeSink) DetectedSpeechStart(offsetTicks uint64)            {}
func (s *fakeSink) DetectedSpeechEnd(offsetTicks uint64)              {}
func (s *fakeSink) IntermediateResult(offsetTicks uint64, r site.Result) {}
func (s *fakeSink) FinalResult(offsetTicks uint64, r site.Result)      { s.finals = append(s.finals, r) }
func (s *fakeSink) TranslationSynthesis(r site.Result)                {}
func (s *fakeSink) StoppedTurn()                                      {}
func (s *fakeSink) RequestingAudioIdle()                              {}
func (s *fakeSink) CompletedSetFormatStop()                           {}
func (s *fakeSink) Error(message string)                              {}

func TestCompleteFiresExactlyOnce(t *testing.T) {
	sink := &fakeSink{}
	c := New(fakeResults{}, sink, nil)
	c.Remember(PendingPhrase{Text: "play music", OffsetTicks: 10})
	c.Complete(`{"luis":"x"}`)
	c.Complete("")

	if len(sink.finals) != 1 {
		t.Fatalf("expected exactly one final result, got %d", len(sink.finals))
	}
	if got := sink.finals[0].Kind(); got != "final:play music:{\"luis\":\"x\"}" {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestCompleteWithEmptySlotIsNoop(t *testing.T) {
	sink := &fakeSink{}
	c := New(fakeResults{}, sink, nil)
	c.Complete("")
	if len(sink.finals) != 0 {
		t.Fatalf("expected no final result fired, got %d", len(sink.finals))
	}
}

func TestPendingReflectsSlotState(t *testing.T) {
	c := New(fakeResults{}, &fakeSink{}, nil)
	if c.Pending() {
		t.Fatalf("expected empty slot initially")
	}
	c.Remember(PendingPhrase{Text: "hello"})
	if !c.Pending() {
		t.Fatalf("expected slot occupied after Remember")
	}
	c.Complete("")
	if c.Pending() {
		t.Fatalf("expected slot cleared after Complete")
	}
}
