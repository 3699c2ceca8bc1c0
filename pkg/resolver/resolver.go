// Package resolver derives an endpoint kind, recognition mode, and
// authentication scheme from the site's named-property store (component
// E).
package resolver

import (
	"strings"

	"github.com/northwing/recoadapter/pkg/errorsx"
	"github.com/northwing/recoadapter/pkg/site"
)

type EndpointKind int

const (
	EndpointCortanaSDK EndpointKind = iota
	EndpointCustom
	EndpointTranslation
	EndpointCustomModel
	EndpointDefaultSpeech
)

type RecoMode int

const (
	ModeInteractive RecoMode = iota
	ModeConversation
	ModeDictation
)

func (m RecoMode) String() string {
	switch m {
	case ModeConversation:
		return "Conversation"
	case ModeDictation:
		return "Dictation"
	default:
		return "Interactive"
	}
}

type AuthScheme int

const (
	AuthSubscriptionKey AuthScheme = iota
	AuthToken
	AuthRPSToken
)

// Resolution is everything the session builder needs to open a connection.
type Resolution struct {
	Endpoint         EndpointKind
	CustomEndpoint   bool
	URL              string
	Language         string
	ModelID          string
	TranslationFrom  string
	TranslationTo    []string
	TranslationVoice string
	Mode             RecoMode
	Auth             AuthScheme
	AuthValue        string
}

// Property keys consumed from the site's named-property store.
const (
	KeyEndpoint          = "speech.endpoint"
	KeyModelID           = "speech.model_id"
	KeyRecoMode          = "speech.reco_mode"
	KeyRecoLanguage      = "speech.reco_language"
	KeySubscriptionKey   = "speech.subscription_key"
	KeyAuthToken         = "speech.auth_token"
	KeyRPSToken          = "speech.rps_token"
	KeyTranslationFrom   = "translation.from_language"
	KeyTranslationTo     = "translation.to_languages"
	KeyTranslationVoice  = "translation.voice"
	KeyNoDGI             = "CARBON-INTERNAL-USP-NoDGI"
	KeyNoIntentJSON      = "CARBON-INTERNAL-USP-NoIntentJson"
	KeyResetAfterError   = "CARBON-INTERNAL-USP-ResetAfterError"
)

// Resolve implements spec §4.E: endpoint selection first-match-wins, then
// recognition mode, then authentication.
func Resolve(props site.NamedProperties) (Resolution, error) {
	var r Resolution

	if err := resolveEndpoint(props, &r); err != nil {
		return Resolution{}, err
	}
	if err := resolveMode(props, &r); err != nil {
		return Resolution{}, err
	}
	if err := resolveAuth(props, &r); err != nil {
		return Resolution{}, err
	}
	return r, nil
}

func resolveEndpoint(props site.NamedProperties, r *Resolution) error {
	endpoint := props.GetString(KeyEndpoint)

	switch {
	case strings.EqualFold(endpoint, "CORTANA"):
		r.Endpoint = EndpointCortanaSDK
		return nil
	case endpoint != "":
		r.Endpoint = EndpointCustom
		r.CustomEndpoint = true
		r.URL = endpoint
		return nil
	}

	if from := props.GetString(KeyTranslationFrom); from != "" {
		to := props.GetString(KeyTranslationTo)
		if to == "" {
			return errorsx.Wrap(errInvalidArgument("translation.from_language set without translation.to_languages"), errorsx.ReasonInvalidArgument)
		}
		r.Endpoint = EndpointTranslation
		r.TranslationFrom = from
		r.TranslationTo = splitNonEmpty(to)
		r.TranslationVoice = props.GetString(KeyTranslationVoice)
		r.ModelID = props.GetString(KeyModelID)
		return nil
	}

	if modelID := props.GetString(KeyModelID); modelID != "" {
		r.Endpoint = EndpointCustomModel
		r.ModelID = modelID
		return nil
	}

	r.Endpoint = EndpointDefaultSpeech
	r.Language = props.GetString(KeyRecoLanguage)
	return nil
}

func resolveMode(props site.NamedProperties, r *Resolution) error {
	if raw := props.GetString(KeyRecoMode); raw != "" {
		mode, ok := parseMode(raw)
		if !ok {
			return errorsx.Wrap(errInvalidArgument("unknown speech.reco_mode value: "+raw), errorsx.ReasonInvalidArgument)
		}
		r.Mode = mode
		return nil
	}

	if r.CustomEndpoint {
		switch {
		case strings.Contains(r.URL, "/interactive/"):
			r.Mode = ModeInteractive
			return nil
		case strings.Contains(r.URL, "/conversation/"):
			r.Mode = ModeConversation
			return nil
		case strings.Contains(r.URL, "/dictation/"):
			r.Mode = ModeDictation
			return nil
		}
	}

	r.Mode = ModeInteractive
	return nil
}

func parseMode(raw string) (RecoMode, bool) {
	switch strings.ToLower(raw) {
	case "interactive":
		return ModeInteractive, true
	case "conversation":
		return ModeConversation, true
	case "dictation":
		return ModeDictation, true
	default:
		return 0, false
	}
}

func resolveAuth(props site.NamedProperties, r *Resolution) error {
	if v := props.GetString(KeySubscriptionKey); v != "" {
		r.Auth = AuthSubscriptionKey
		r.AuthValue = v
		return nil
	}
	if v := props.GetString(KeyAuthToken); v != "" {
		r.Auth = AuthToken
		r.AuthValue = v
		return nil
	}
	if v := props.GetString(KeyRPSToken); v != "" {
		r.Auth = AuthRPSToken
		r.AuthValue = v
		return nil
	}
	return errorsx.Wrap(errInvalidArgument("no authentication parameter present"), errorsx.ReasonInvalidArgument)
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type invalidArgumentError string

func (e invalidArgumentError) Error() string { return string(e) }

func errInvalidArgument(msg string) error { return invalidArgumentError(msg) }
