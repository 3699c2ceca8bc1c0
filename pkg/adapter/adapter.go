// Package adapter implements the turn controller (component G): the
// recognition-engine adapter proper. It consumes site-driven ingress
// (Init, SetMode, SetFormat, ProcessAudio, Term), consumes service events
// through its session.EventSink implementation, and drives the state
// machine, uploader, session facade, and result correlator to translate
// between the two.
package adapter

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/northwing/recoadapter/pkg/correlator"
	"github.com/northwing/recoadapter/pkg/errorsx"
	"github.com/northwing/recoadapter/pkg/fsm"
	"github.com/northwing/recoadapter/pkg/resolver"
	"github.com/northwing/recoadapter/pkg/session"
	"github.com/northwing/recoadapter/pkg/site"
	"github.com/northwing/recoadapter/pkg/speechcontext"
	"github.com/northwing/recoadapter/pkg/uploader"
	"github.com/northwing/recoadapter/pkg/wavheader"
)

// defaultPreferredFrameMillis is the service-preferred audio chunk duration
// used to size the uploader's frame once a format is known, unless the host
// overrides it with WithPreferredFrameMillis.
const defaultPreferredFrameMillis = 128

// Adapter is component G. Construct with New, call Init once, then drive it
// from the site's audio thread (SetMode/SetFormat/ProcessAudio/Term) and
// from the transport's receive thread (the session.EventSink methods).
type Adapter struct {
	fsm           *fsm.Machine
	site          site.Site
	builder       session.Builder
	sessionFacade *session.Facade
	uploader      *uploader.Uploader
	correlator    *correlator.Correlator
	log           *slog.Logger

	preferredFrameMillis int

	mu                   sync.Mutex
	initialized          bool
	singleShot           bool
	format               *site.FormatDescriptor
	expectIntentResponse bool
	noDGI                bool
	noIntentJSON         bool
	resetAfterError      bool
}

// Option configures optional Adapter construction parameters.
type Option func(*Adapter)

// WithPreferredFrameMillis overrides the service-preferred audio chunk
// duration used to size the uploader's frame once a format is known.
func WithPreferredFrameMillis(ms int) Option {
	return func(a *Adapter) {
		if ms > 0 {
			a.preferredFrameMillis = ms
		}
	}
}

// New wires an Adapter against a host site and a session builder. The
// session is not opened here — per the lazy-open design, that happens on
// the first audio write of a turn.
func New(s site.Site, builder session.Builder, log *slog.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "adapter"))
	machine := fsm.New(log)
	facade := session.New(machine, log)

	a := &Adapter{
		fsm:                  machine,
		site:                 s,
		builder:              builder,
		sessionFacade:        facade,
		log:                  log,
		preferredFrameMillis: defaultPreferredFrameMillis,
	}
	a.uploader = uploader.New(facade, 0)
	a.correlator = correlator.New(s.Results, s.Callbacks, log)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ session.EventSink = (*Adapter)(nil)

// Init asserts the adapter is unused and idle. It does not open a session.
func (a *Adapter) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return errorsx.Wrap(errors.New("adapter already initialized"), errorsx.ReasonAlreadyInitialized)
	}
	if a.site.Callbacks == nil {
		return errorsx.Wrap(errors.New("no site configured"), errorsx.ReasonUninitialized)
	}
	pair := a.fsm.Current()
	if pair.Audio != fsm.AudioIdle || pair.Usp != fsm.UspIdle {
		return errorsx.Wrap(errors.New("adapter not idle"), errorsx.ReasonAlreadyInitialized)
	}
	a.initialized = true
	return nil
}

// SetMode records single-shot vs. continuous. Call outside any turn.
func (a *Adapter) SetMode(singleShot bool) {
	a.mu.Lock()
	a.singleShot = singleShot
	a.mu.Unlock()
}

// SetFormat installs (fmtDesc != nil) or clears (fmtDesc == nil) the active
// format descriptor. Clearing fires completed_set_format_stop, except in
// Zombie where every ingress is a silent drop.
func (a *Adapter) SetFormat(fmtDesc *site.FormatDescriptor) {
	if fmtDesc != nil {
		if !a.fsm.Change(fsm.AudioIdle, fsm.UspIdle, fsm.AudioReady, fsm.UspIdle) {
			a.fsm.LogUnexpected("set_format")
			return
		}
		a.mu.Lock()
		a.format = fmtDesc
		a.mu.Unlock()
		return
	}

	pair := a.fsm.Current()
	if pair.Usp == fsm.UspZombie {
		return
	}
	if !a.fsm.Change(pair.Audio, pair.Usp, fsm.AudioIdle, pair.Usp) {
		a.fsm.LogUnexpected("set_format")
		return
	}
	a.mu.Lock()
	a.format = nil
	a.mu.Unlock()
	a.site.Callbacks.CompletedSetFormatStop()
}

// ProcessAudio is the audio-thread ingress. An empty slice means "flush".
func (a *Adapter) ProcessAudio(data []byte) {
	pair := a.fsm.Current()

	if len(data) > 0 && pair.Audio == fsm.AudioReady && pair.Usp == fsm.UspIdle {
		if !a.fsm.Change(fsm.AudioReady, fsm.UspIdle, fsm.AudioSending, fsm.UspWaitingForTurnStart) {
			a.fsm.LogUnexpected("process_audio")
			return
		}
		if err := a.ensureSession(); err != nil {
			a.failToOpen(err.Error())
			return
		}
		a.sendPreAudioMessages()
		a.uploader.Write(data)
		a.site.Callbacks.StartingTurn()
		return
	}

	if len(data) > 0 && pair.Audio == fsm.AudioSending {
		a.uploader.Write(data)
		return
	}

	if len(data) == 0 && pair.Audio == fsm.AudioSending {
		a.uploader.Flush()
		return
	}

	// audio_state != Sending and this isn't the opening write: per spec
	// this is a silent drop, no log.
}

// Term tears the adapter down: Terminating, destroy the session, Zombie.
// Idempotent — a call that finds Zombie already is a no-op.
func (a *Adapter) Term() {
	pair := a.fsm.Current()
	if pair.Usp == fsm.UspZombie {
		return
	}
	if !a.fsm.Change(pair.Audio, pair.Usp, pair.Audio, fsm.UspTerminating) {
		a.fsm.LogUnexpected("term")
		return
	}
	a.sessionFacade.Destroy()
	pair = a.fsm.Current()
	a.fsm.Change(pair.Audio, pair.Usp, pair.Audio, fsm.UspZombie)
}

// ensureSession is idempotent: a no-op once a connection is open. It
// resolves endpoint/mode/auth and the three internal boolean properties
// exactly once per session, matching the "snapshot at session-open time"
// rule in spec §3 — nothing here is re-read mid-turn.
func (a *Adapter) ensureSession() error {
	if a.sessionFacade.HasConn() {
		return nil
	}
	if a.site.Properties == nil {
		return errorsx.Wrap(errors.New("no property store configured"), errorsx.ReasonSiteFailure)
	}

	res, err := resolver.Resolve(a.site.Properties)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.noDGI = a.site.Properties.GetBool(resolver.KeyNoDGI, false)
	a.noIntentJSON = a.site.Properties.GetBool(resolver.KeyNoIntentJSON, false)
	a.resetAfterError = a.site.Properties.GetBool(resolver.KeyResetAfterError, false)
	a.mu.Unlock()

	conn, err := a.builder.Open(res, a)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportConnect)
	}
	a.sessionFacade.SetConn(conn)
	return nil
}

func (a *Adapter) failToOpen(msg string) {
	pair := a.fsm.Current()
	a.fsm.Change(pair.Audio, pair.Usp, pair.Audio, fsm.UspError)
	a.site.Callbacks.Error(msg)
}

// sendPreAudioMessages builds and sends the speech.context control message
// (if non-empty) then the WAV prelude, in that order, then arms the
// uploader with the real preferred frame size. Both the context and the
// header go out before frame_size is set, so the header is never coalesced
// with the first real audio frame (spec §8 invariant 2).
func (a *Adapter) sendPreAudioMessages() {
	a.mu.Lock()
	fmtDesc := a.format
	noDGI := a.noDGI
	noIntentJSON := a.noIntentJSON
	a.mu.Unlock()

	var listenFor []string
	if a.site.ListenFor != nil {
		listenFor = a.site.ListenFor.GetListenForList()
	}
	var triple site.IntentTriple
	if a.site.Intent != nil {
		triple = a.site.Intent.GetIntentInfo()
	}

	payload, expectIntent, ok := speechcontext.Build(listenFor, triple, noDGI, noIntentJSON)
	a.mu.Lock()
	a.expectIntentResponse = expectIntent
	a.mu.Unlock()
	if ok {
		a.sessionFacade.SendControl("speech.context", payload)
	}

	if fmtDesc == nil {
		return
	}
	a.uploader.Write(wavheader.Write(*fmtDesc))
	frameSize := int(uint64(fmtDesc.SampleRate) * uint64(fmtDesc.BlockAlign) * uint64(a.preferredFrameMillis) / 1000)
	a.uploader.SetFrameSize(frameSize)
}

// --- session.EventSink -------------------------------------------------

func (a *Adapter) OnTurnStart(tag string) {
	if a.fsm.DropIfBad("turn_start") {
		return
	}
	pair := a.fsm.Current()
	if !a.fsm.Change(pair.Audio, fsm.UspWaitingForTurnStart, pair.Audio, fsm.UspWaitingForPhrase) {
		a.fsm.LogUnexpected("turn_start")
		return
	}
	a.site.Callbacks.StartedTurn(tag)
}

func (a *Adapter) OnSpeechStartDetected(offset uint64) {
	if a.fsm.DropIfBad("speech_start_detected") {
		return
	}
	if a.fsm.Current().Usp != fsm.UspWaitingForPhrase {
		a.fsm.LogUnexpected("speech_start_detected")
		return
	}
	a.site.Callbacks.DetectedSpeechStart(offset)
}

func (a *Adapter) OnSpeechHypothesis(text string, offset, duration uint64, json string, isTranslation bool, translations map[string]string) {
	if a.fsm.DropIfBad("speech_hypothesis") {
		return
	}
	if a.fsm.Current().Usp != fsm.UspWaitingForPhrase {
		a.fsm.LogUnexpected("speech_hypothesis")
		return
	}
	a.emitIntermediate(text, offset, duration, json, isTranslation, translations)
}

// OnSpeechFragment only applies in continuous mode, either directly from
// WaitingForPhrase or via the WaitingForIntent -> WaitingForIntent2 ->
// WaitingForPhrase bracket when intent never arrived before the fragment.
func (a *Adapter) OnSpeechFragment(text string, offset, duration uint64, json string, isTranslation bool, translations map[string]string) {
	if a.fsm.DropIfBad("speech_fragment") {
		return
	}
	a.mu.Lock()
	singleShot := a.singleShot
	a.mu.Unlock()
	if singleShot {
		a.fsm.LogUnexpected("speech_fragment")
		return
	}

	pair := a.fsm.Current()
	switch pair.Usp {
	case fsm.UspWaitingForPhrase:
	case fsm.UspWaitingForIntent:
		if !a.fsm.Change(pair.Audio, fsm.UspWaitingForIntent, pair.Audio, fsm.UspWaitingForIntent2) {
			a.fsm.LogUnexpected("speech_fragment")
			return
		}
		a.correlator.Complete("")
		if !a.fsm.Change(pair.Audio, fsm.UspWaitingForIntent2, pair.Audio, fsm.UspWaitingForPhrase) {
			a.fsm.LogUnexpected("speech_fragment")
			return
		}
	default:
		a.fsm.LogUnexpected("speech_fragment")
		return
	}

	a.emitIntermediate(text, offset, duration, json, isTranslation, translations)
}

// emitIntermediate mirrors fireFinal's translation branch for the
// intermediate-result path shared by OnSpeechHypothesis and OnSpeechFragment.
func (a *Adapter) emitIntermediate(text string, offset, duration uint64, json string, isTranslation bool, translations map[string]string) {
	var result site.Result
	if isTranslation {
		result = a.site.Results.CreateTranslationIntermediate(text, offset, duration, translations)
	} else {
		result = a.site.Results.CreateIntermediate(text, offset, duration, json)
	}
	a.site.Callbacks.IntermediateResult(offset, result)
}

// OnSpeechPhrase implements spec §4.G's speech_phrase dispatch. The open
// question on expect_intent_response + failed recognition is preserved
// exactly: a failed recognition falls through to the normal final-result
// path regardless of expect_intent_response.
func (a *Adapter) OnSpeechPhrase(msg session.PhraseMessage) {
	if a.fsm.DropIfBad("speech_phrase") {
		return
	}
	a.mu.Lock()
	expectIntent := a.expectIntentResponse
	singleShot := a.singleShot
	a.mu.Unlock()

	pair := a.fsm.Current()
	if pair.Usp != fsm.UspWaitingForPhrase {
		a.fsm.LogUnexpected("speech_phrase")
		return
	}

	if expectIntent && msg.RecognitionSuccess {
		if !a.fsm.Change(pair.Audio, fsm.UspWaitingForPhrase, pair.Audio, fsm.UspWaitingForIntent) {
			a.fsm.LogUnexpected("speech_phrase")
			return
		}
		a.correlator.Remember(correlator.PendingPhrase{
			Text:          msg.Text,
			OffsetTicks:   msg.OffsetTicks,
			DurationTicks: msg.DurationTicks,
			RawJSON:       msg.RawJSON,
			IsTranslation: msg.IsTranslation,
			Translations:  msg.Translations,
		})
		return
	}

	var toUsp fsm.UspState
	if singleShot {
		toUsp = fsm.UspWaitingForTurnEnd
	} else {
		toUsp = fsm.UspWaitingForPhrase
	}
	if !a.fsm.Change(pair.Audio, fsm.UspWaitingForPhrase, pair.Audio, toUsp) {
		a.fsm.LogUnexpected("speech_phrase")
		return
	}
	a.fireFinal(msg, "")
}

func (a *Adapter) fireFinal(msg session.PhraseMessage, luisJSON string) {
	var result site.Result
	if msg.IsTranslation {
		result = a.site.Results.CreateTranslationFinal(msg.Text, msg.OffsetTicks, msg.DurationTicks, msg.Translations, luisJSON)
	} else {
		result = a.site.Results.CreateFinal(msg.Text, msg.OffsetTicks, msg.DurationTicks, msg.RawJSON, luisJSON)
	}
	a.site.Callbacks.FinalResult(msg.OffsetTicks, result)
}

// OnSpeechEndDetected flushes even when the event is dropped as an
// unexpected transition — preserving the source's quirk flagged as an open
// question in spec §9. A bad-state drop returns without flushing.
func (a *Adapter) OnSpeechEndDetected(offset uint64) {
	if a.fsm.DropIfBad("speech_end_detected") {
		return
	}
	pair := a.fsm.Current()
	uspOK := pair.Usp == fsm.UspWaitingForPhrase || pair.Usp == fsm.UspWaitingForTurnEnd
	audioOK := pair.Audio == fsm.AudioIdle || pair.Audio == fsm.AudioSending || pair.Audio == fsm.AudioStopping
	if !uspOK || !audioOK {
		a.fsm.LogUnexpected("speech_end_detected")
		a.uploader.Flush()
		return
	}

	a.mu.Lock()
	singleShot := a.singleShot
	a.mu.Unlock()

	var stopping bool
	if singleShot {
		stopping = a.fsm.Change(fsm.AudioSending, pair.Usp, fsm.AudioStopping, pair.Usp)
	}

	a.site.Callbacks.DetectedSpeechEnd(offset)
	a.uploader.Flush()
	if stopping {
		a.site.Callbacks.RequestingAudioIdle()
	}
}

// OnTurnEnd implements spec §4.G's turn_end dispatch, including the
// WaitingForIntent -> WaitingForIntent2 -> Idle drain bracket and the
// session re-arm for the non-single-shot path.
func (a *Adapter) OnTurnEnd() {
	if a.fsm.DropIfBad("turn_end") {
		return
	}

	a.mu.Lock()
	singleShot := a.singleShot
	a.mu.Unlock()

	pair := a.fsm.Current()
	var prepareReady, requestIdle bool
	if !singleShot {
		prepareReady = a.fsm.Change(fsm.AudioSending, pair.Usp, fsm.AudioReady, pair.Usp)
	} else {
		requestIdle = a.fsm.Change(fsm.AudioSending, pair.Usp, fsm.AudioStopping, pair.Usp)
	}

	pair = a.fsm.Current()
	turnStopped := false
	switch pair.Usp {
	case fsm.UspWaitingForTurnEnd:
		turnStopped = a.fsm.Change(pair.Audio, fsm.UspWaitingForTurnEnd, pair.Audio, fsm.UspIdle)
	case fsm.UspWaitingForPhrase:
		turnStopped = a.fsm.Change(pair.Audio, fsm.UspWaitingForPhrase, pair.Audio, fsm.UspIdle)
	case fsm.UspWaitingForIntent:
		if a.fsm.Change(pair.Audio, fsm.UspWaitingForIntent, pair.Audio, fsm.UspWaitingForIntent2) {
			a.correlator.Complete("")
			turnStopped = a.fsm.Change(pair.Audio, fsm.UspWaitingForIntent2, pair.Audio, fsm.UspIdle)
		}
	default:
		a.fsm.LogUnexpected("turn_end")
	}

	if prepareReady {
		a.uploader.SetFrameSize(0)
		if err := a.ensureSession(); err != nil {
			a.log.Warn("turn_end_rearm_failed", "err", err)
		}
	}

	if turnStopped {
		a.site.Callbacks.StoppedTurn()
	}

	if requestIdle {
		a.uploader.Flush()
		a.site.Callbacks.RequestingAudioIdle()
	}
}

// OnError implements the ServiceError policy of spec §7.
func (a *Adapter) OnError(msg string) {
	pair := a.fsm.Current()
	if pair.Usp.IsBad() {
		return
	}

	a.mu.Lock()
	resetAfterError := a.resetAfterError
	fmtDesc := a.format
	a.mu.Unlock()

	if resetAfterError && fmtDesc != nil {
		if a.fsm.Change(pair.Audio, pair.Usp, fsm.AudioReady, fsm.UspIdle) {
			a.sessionFacade.Destroy()
			a.site.Callbacks.Error(msg)
			return
		}
	}

	a.fsm.Change(pair.Audio, pair.Usp, pair.Audio, fsm.UspError)
	a.site.Callbacks.Error(msg)
}

func (a *Adapter) OnUserMessage(path, contentType string, payload []byte) {
	if a.fsm.DropIfBad("user_message") {
		return
	}
	if path != "response" {
		return
	}
	pair := a.fsm.Current()
	if pair.Usp != fsm.UspWaitingForIntent {
		a.fsm.LogUnexpected("user_message")
		return
	}
	if !a.fsm.Change(pair.Audio, fsm.UspWaitingForIntent, pair.Audio, fsm.UspWaitingForIntent2) {
		a.fsm.LogUnexpected("user_message")
		return
	}
	a.correlator.Complete(string(payload))
	a.fsm.Change(pair.Audio, fsm.UspWaitingForIntent2, pair.Audio, fsm.UspWaitingForPhrase)
}

// OnTranslationSynthesis and OnTranslationSynthesisEnd are the translation
// supplements: legal in any non-bad state, no transition, straight to the
// site's translation_synthesis callback.
func (a *Adapter) OnTranslationSynthesis(audio []byte) {
	if a.fsm.DropIfBad("translation_synthesis") {
		return
	}
	result := a.site.Results.CreateTranslationSynthesis(audio, false)
	a.site.Callbacks.TranslationSynthesis(result)
}

func (a *Adapter) OnTranslationSynthesisEnd(status string) {
	if a.fsm.DropIfBad("translation_synthesis_end") {
		return
	}
	result := a.site.Results.CreateTranslationSynthesis(nil, true)
	a.site.Callbacks.TranslationSynthesis(result)
}
