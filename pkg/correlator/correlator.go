// Package correlator holds the "final phrase pending intent" slot: a phrase
// recognized while intent enrichment is expected is held back until either
// the intent payload arrives or the turn ends, whichever comes first.
package correlator

import (
	"log/slog"
	"sync"

	"github.com/northwing/recoadapter/pkg/site"
)

// PendingPhrase is what Remember stores: everything Complete needs to build
// and fire the eventual final result.
type PendingPhrase struct {
	Text          string
	OffsetTicks   uint64
	DurationTicks uint64
	RawJSON       string
	IsTranslation bool
	Translations  map[string]string
}

// Correlator owns the single pending-phrase slot. At most one phrase
// occupies it at a time; Remember overwrites without complaint, matching
// the source, which only ever calls Remember from the WaitingForPhrase ->
// WaitingForIntent transition, itself guarded by the state machine so two
// concurrent occupants can never actually arise.
type Correlator struct {
	mu        sync.Mutex
	pending   *PendingPhrase
	results   site.ResultFactory
	callbacks site.CallbackSink
	log       *slog.Logger
}

func New(results site.ResultFactory, callbacks site.CallbackSink, log *slog.Logger) *Correlator {
	if log == nil {
		log = slog.Default()
	}
	return &Correlator{
		results:   results,
		callbacks: callbacks,
		log:       log.With(slog.String("component", "correlator")),
	}
}

// Remember stores msg as the phrase awaiting intent correlation.
func (c *Correlator) Remember(msg PendingPhrase) {
	c.mu.Lock()
	c.pending = &msg
	c.mu.Unlock()
}

// Pending reports whether a phrase is currently held back.
func (c *Correlator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Complete reads and clears the slot, then fires exactly one final_result
// built from the stored phrase plus luisJSON (empty when intent never
// arrived). It is a no-op if the slot is already empty, which happens if
// Complete is somehow invoked twice for the same phrase — the bracketing
// WaitingForIntent -> WaitingForIntent2 transition in the turn controller
// is what actually prevents that from happening in practice.
func (c *Correlator) Complete(luisJSON string) {
	c.mu.Lock()
	msg := c.pending
	c.pending = nil
	c.mu.Unlock()

	if msg == nil {
		return
	}
	if c.callbacks == nil || c.results == nil {
		return
	}

	var result site.Result
	if msg.IsTranslation {
		result = c.results.CreateTranslationFinal(msg.Text, msg.OffsetTicks, msg.DurationTicks, msg.Translations, luisJSON)
	} else {
		result = c.results.CreateFinal(msg.Text, msg.OffsetTicks, msg.DurationTicks, msg.RawJSON, luisJSON)
	}
	c.callbacks.FinalResult(msg.OffsetTicks, result)
}
