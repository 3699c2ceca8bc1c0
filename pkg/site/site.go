// Package site defines the narrow capabilities the turn controller consumes
// from its host, and the value types that flow across that boundary.
//
// The host is split into five small interfaces rather than one wide one, so
// tests can hand the adapter only the capabilities a given scenario needs.
package site

// FormatDescriptor is an immutable record of the audio format handed to
// SetFormat. It is compared by identity once stored, never by value.
type FormatDescriptor struct {
	Tag            uint16
	Channels       uint16
	SampleRate     uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	ExtraBytes     []byte
}

// IntentTriple identifies a language-understanding provider for the current
// turn. All three fields must be non-empty for the intent branch of a
// speech.context payload to be built.
type IntentTriple struct {
	Provider string
	ID       string
	Key      string
}

// NamedProperties is a read-only key/value store the resolver and the turn
// controller consult once at session-open time; the context builder gets
// its two suppressor flags from the turn controller.
type NamedProperties interface {
	GetString(key string) string
	GetBool(key string, def bool) bool
}

// ListenFor supplies the ordered grammar/keyword hint list for a turn.
type ListenFor interface {
	GetListenForList() []string
}

// IntentInfo supplies the language-understanding provider triple for a turn.
type IntentInfo interface {
	GetIntentInfo() IntentTriple
}

// Result is an opaque recognition result produced by a ResultFactory and
// handed back to CallbackSink methods unmodified.
type Result interface {
	Kind() string
}

// ResultFactory builds result objects from raw recognition data. Real hosts
// implement richer result types (translation-text, translation-synthesis);
// the adapter only needs these five constructors.
type ResultFactory interface {
	CreateIntermediate(text string, offset, duration uint64, json string) Result
	CreateFinal(text string, offset, duration uint64, json, luisJSON string) Result
	CreateTranslationIntermediate(text string, offset, duration uint64, translations map[string]string) Result
	CreateTranslationFinal(text string, offset, duration uint64, translations map[string]string, luisJSON string) Result
	CreateTranslationSynthesis(audio []byte, statusEnd bool) Result
}

// CallbackSink receives every event the turn controller fires outward. All
// methods must be safe to call without any adapter lock held.
type CallbackSink interface {
	StartingTurn()
	StartedTurn(tag string)
	DetectedSpeechStart(offsetTicks uint64)
	DetectedSpeechEnd(offsetTicks uint64)
	IntermediateResult(offsetTicks uint64, result Result)
	FinalResult(offsetTicks uint64, result Result)
	TranslationSynthesis(result Result)
	StoppedTurn()
	RequestingAudioIdle()
	CompletedSetFormatStop()
	Error(message string)
}

// Site aggregates the five capabilities. Constructors take this bundle by
// value; callers are free to implement it with a single concrete type or
// five separate ones.
type Site struct {
	Properties NamedProperties
	ListenFor  ListenFor
	Intent     IntentInfo
	Results    ResultFactory
	Callbacks  CallbackSink
}
