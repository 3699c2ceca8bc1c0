// Package speechcontext builds the "speech.context" control message
// (component D): grammar hints plus intent-provider info, serialized as a
// JSON object.
//
// The source builds this payload by raw string concatenation; this
// reimplementation uses tagged structs and encoding/json instead; json.
// Marshal on a struct emits fields in declaration order, so the wire shape
// is identical to the source's hand-built string, and the struct gives a
// free, exact inverse (Parse) for the round-trip property.
package speechcontext

import (
	"encoding/json"
	"strings"

	"github.com/northwing/recoadapter/pkg/site"
)

type item struct {
	Text string `json:"Text"`
}

type group struct {
	Type  string `json:"Type"`
	Items []item `json:"Items"`
}

type dgi struct {
	Groups            []group  `json:"Groups,omitempty"`
	ReferenceGrammars []string `json:"ReferenceGrammars,omitempty"`
}

type intent struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	Key      string `json:"key"`
}

type payload struct {
	DGI    *dgi    `json:"dgi,omitempty"`
	Intent *intent `json:"intent,omitempty"`
}

// Build assembles the speech.context payload from the site's listen-for
// list and intent triple, honoring the two property-store suppressors.
// It returns ok=false when both the dgi and intent branches end up empty,
// in which case no "speech.context" control message should be sent at
// all. expectIntentResponse reports whether the intent branch was emitted
// — the turn controller remembers this to decide whether a phrase result
// should wait for intent correlation.
func Build(listenFor []string, triple site.IntentTriple, noDGI, noIntentJSON bool) (out []byte, expectIntentResponse bool, ok bool) {
	var p payload

	if !noDGI {
		if d := buildDGI(listenFor); d != nil {
			p.DGI = d
		}
	}

	if !noIntentJSON && triple.Provider != "" && triple.ID != "" && triple.Key != "" {
		p.Intent = &intent{Provider: triple.Provider, ID: triple.ID, Key: triple.Key}
		expectIntentResponse = true
	}

	if p.DGI == nil && p.Intent == nil {
		return nil, false, false
	}

	out, err := json.Marshal(p)
	if err != nil {
		return nil, false, false
	}
	return out, expectIntentResponse, true
}

func buildDGI(listenFor []string) *dgi {
	if len(listenFor) == 0 {
		return nil
	}
	var items []item
	var refGrammars []string
	for _, entry := range listenFor {
		if g, isGrammar := referenceGrammar(entry); isGrammar {
			refGrammars = append(refGrammars, g)
		} else {
			items = append(items, item{Text: entry})
		}
	}
	if len(items) == 0 && len(refGrammars) == 0 {
		return nil
	}
	d := &dgi{ReferenceGrammars: refGrammars}
	if len(items) > 0 {
		d.Groups = []group{{Type: "Generic", Items: items}}
	}
	return d
}

// referenceGrammar classifies a single listen-for entry: it is a reference
// grammar iff its length is greater than 3, it starts with '{', ends with
// '}', and contains a ':' — in which case the colon is replaced with '/'
// and the surrounding braces are stripped.
func referenceGrammar(entry string) (string, bool) {
	if len(entry) <= 3 {
		return "", false
	}
	if !strings.HasPrefix(entry, "{") || !strings.HasSuffix(entry, "}") {
		return "", false
	}
	inner := entry[1 : len(entry)-1]
	if !strings.Contains(inner, ":") {
		return "", false
	}
	return strings.Replace(inner, ":", "/", 1), true
}

// Parsed is the decoded shape of a built speech.context payload.
type Parsed struct {
	Items             []string
	ReferenceGrammars []string
	Intent            site.IntentTriple
}

// Parse decodes a speech.context payload back into the grammars/items and
// intent triple it was built from.
func Parse(raw []byte) (Parsed, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Parsed{}, err
	}
	var out Parsed
	if p.DGI != nil {
		out.ReferenceGrammars = p.DGI.ReferenceGrammars
		for _, g := range p.DGI.Groups {
			for _, it := range g.Items {
				out.Items = append(out.Items, it.Text)
			}
		}
	}
	if p.Intent != nil {
		out.Intent = site.IntentTriple{Provider: p.Intent.Provider, ID: p.Intent.ID, Key: p.Intent.Key}
	}
	return out, nil
}
