// Package scrub implements the anonymization core: recognizer registry,
// risk-tier classification, entity detection dispatch, conflict resolution,
// reversible tokenization, and the descrub (reversal) engine.
//
// The engine is stateless per call. The only shared state is the immutable
// Registry built once at process start, so any number of Scrub/Descrub calls
// may run concurrently without locking. The core performs no persistence:
// callers must store ScrubResult.Entities (and the original text, if full
// reversal will ever be needed) themselves.
package scrub

// Kind identifies how a recognizer proposes matches.
type Kind string

const (
	// KindPattern matches via a compiled regular expression.
	KindPattern Kind = "pattern"
	// KindDenyList matches case-insensitive deny-list terms.
	KindDenyList Kind = "deny_list"
	// KindModel delegates to a named external Detector.
	KindModel Kind = "model"
)

// Default scores applied when a recognizer spec omits one. Values match
// Presidio's defaults for pattern and deny-list recognizers.
const (
	DefaultPatternScore  = 0.8
	DefaultDenyListScore = 0.7
)

// RecognizerSpec is one immutable recognizer definition. Specs are loaded
// once at startup; there is no hot-reload, configuration changes require a
// restart.
type RecognizerSpec struct {
	Name         string   `yaml:"name" json:"name"`
	EntityType   string   `yaml:"supported_entity" json:"supported_entity"`
	Kind         Kind     `yaml:"type" json:"type"`
	Pattern      string   `yaml:"regex,omitempty" json:"regex,omitempty"`
	DenyList     []string `yaml:"deny_list,omitempty" json:"deny_list,omitempty"`
	ModelRef     string   `yaml:"model_ref,omitempty" json:"model_ref,omitempty"`
	Score        float64  `yaml:"score,omitempty" json:"score,omitempty"`
	ContextWords []string `yaml:"context,omitempty" json:"context,omitempty"`
	// MinTier is the lowest risk tier at which this recognizer is active.
	MinTier string `yaml:"min_tier" json:"min_tier"`
}

// DetectedSpan is a raw candidate match in ORIGINAL-text coordinates.
// Ephemeral: produced per detection call and consumed by the resolver.
type DetectedSpan struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Recognizer string  `json:"recognizer"`

	// order is the registration index of the producing recognizer, used as
	// the final sort tie-breaker so output is stable regardless of detector
	// execution order.
	order int
}

// AnonymizedEntity is the durable record of one replaced span. Start/End are
// offsets in the ANONYMIZED text, not the original; OriginalText holds the
// exact original slice and is what reversal depends on.
type AnonymizedEntity struct {
	EntityType       string  `json:"entity_type"`
	Start            int     `json:"start"`
	End              int     `json:"end"`
	OriginalText     string  `json:"original_text"`
	ReplacementToken string  `json:"replacement_token"`
	Score            float64 `json:"score"`
	Explanation      string  `json:"explanation"`
}

// ScrubResult is the outcome of one scrub call. Immutable once returned:
// reversal always derives a new string, never mutates a result in place.
type ScrubResult struct {
	AnonymizedText string             `json:"anonymized_text"`
	Entities       []AnonymizedEntity `json:"entities"`
}

// DescrubRequest describes one reversal. Either All is set (full reversal,
// requires OriginalText) or Tokens names the replacement tokens to restore
// selectively within AnonymizedText.
type DescrubRequest struct {
	AnonymizedText string             `json:"anonymized_text"`
	Entities       []AnonymizedEntity `json:"entities"`
	Tokens         []string           `json:"tokens,omitempty"`
	All            bool               `json:"all,omitempty"`
	OriginalText   string             `json:"original_text,omitempty"`
}
