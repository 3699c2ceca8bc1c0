package resolver

import (
	"testing"

	"github.com/northwing/recoadapter/pkg/errorsx"
)

type fakeProps struct {
	strings map[string]string
	bools   map[string]bool
}

func (p fakeProps) GetString(key string) string { return p.strings[key] }
func (p fakeProps) GetBool(key string, def bool) bool {
	if v, ok := p.bools[key]; ok {
		return v
	}
	return def
}

func TestResolveDefaultEndpoint(t *testing.T) {
	r, err := Resolve(fakeProps{strings: map[string]string{KeySubscriptionKey: "k"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Endpoint != EndpointDefaultSpeech {
		t.Fatalf("expected default speech endpoint")
	}
	if r.Mode != ModeInteractive {
		t.Fatalf("expected default mode Interactive")
	}
	if r.Auth != AuthSubscriptionKey || r.AuthValue != "k" {
		t.Fatalf("expected subscription key auth")
	}
}

func TestResolveCortana(t *testing.T) {
	r, err := Resolve(fakeProps{strings: map[string]string{KeyEndpoint: "cortana", KeyAuthToken: "t"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Endpoint != EndpointCortanaSDK {
		t.Fatalf("expected cortana endpoint")
	}
}

func TestResolveCustomEndpointModeFromURL(t *testing.T) {
	r, err := Resolve(fakeProps{strings: map[string]string{
		KeyEndpoint:  "https://svc/speech/recognition/conversation/cognitiveservices/v1",
		KeyRPSToken:  "rps",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode != ModeConversation {
		t.Fatalf("expected mode parsed from URL, got %v", r.Mode)
	}
	if !r.CustomEndpoint {
		t.Fatalf("expected custom_endpoint=true")
	}
}

func TestResolveTranslationRequiresTargets(t *testing.T) {
	_, err := Resolve(fakeProps{strings: map[string]string{
		KeyTranslationFrom: "en-US",
		KeySubscriptionKey: "k",
	}})
	if errorsx.Reason(err) != errorsx.ReasonInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestResolveTranslationSplitsTargets(t *testing.T) {
	r, err := Resolve(fakeProps{strings: map[string]string{
		KeyTranslationFrom: "en-US",
		KeyTranslationTo:   "fr-FR, de-DE",
		KeySubscriptionKey: "k",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.TranslationTo) != 2 || r.TranslationTo[0] != "fr-FR" || r.TranslationTo[1] != "de-DE" {
		t.Fatalf("expected split translation targets, got %v", r.TranslationTo)
	}
}

func TestResolveUnknownModeFails(t *testing.T) {
	_, err := Resolve(fakeProps{strings: map[string]string{
		KeyRecoMode:        "gibberish",
		KeySubscriptionKey: "k",
	}})
	if errorsx.Reason(err) != errorsx.ReasonInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestResolveNoAuthFails(t *testing.T) {
	_, err := Resolve(fakeProps{})
	if errorsx.Reason(err) != errorsx.ReasonInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestResolveCustomModel(t *testing.T) {
	r, err := Resolve(fakeProps{strings: map[string]string{
		KeyModelID:         "model-1",
		KeySubscriptionKey: "k",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Endpoint != EndpointCustomModel || r.ModelID != "model-1" {
		t.Fatalf("expected custom model endpoint, got %+v", r)
	}
}
