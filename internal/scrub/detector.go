package scrub

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// ContextBoost is the score increase applied when a context keyword is
	// found near a match. Matches Presidio's context_similarity_factor.
	ContextBoost = 0.35

	// ContextWindowChars is how far before a match context keywords are
	// searched for.
	ContextWindowChars = 100
)

// Detector is the pluggable entity-detection capability. Implementations run
// over the full text restricted to the requested entity-type set and return
// raw candidate spans with scores in [0,1]. The core makes no assumption
// about whether a call blocks; synchronous CPU-bound detectors are fine.
type Detector interface {
	Detect(ctx context.Context, text, language string, entityTypes []string) ([]DetectedSpan, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, text, language string, entityTypes []string) ([]DetectedSpan, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, text, language string, entityTypes []string) ([]DetectedSpan, error) {
	return f(ctx, text, language, entityTypes)
}

// detect runs the registry's built-in pattern and deny-list recognizers whose
// entity type is in entityTypes. Each recognizer scans the whole text
// independently; there is no cross-recognizer coordination at this layer.
func (r *Registry) detect(text string, entityTypes map[string]bool) []DetectedSpan {
	var spans []DetectedSpan

	for _, cr := range r.recognizers {
		if !entityTypes[cr.spec.EntityType] {
			continue
		}
		switch cr.spec.Kind {
		case KindPattern:
			spans = append(spans, cr.matchPattern(text)...)
		case KindDenyList:
			spans = append(spans, cr.matchDenyList(text)...)
		}
	}

	return spans
}

// matchPattern returns every regex match with the spec's default score,
// boosted when a context keyword appears in the window before the match.
func (cr compiledRecognizer) matchPattern(text string) []DetectedSpan {
	matches := cr.re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	spans := make([]DetectedSpan, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, DetectedSpan{
			EntityType: cr.spec.EntityType,
			Start:      m[0],
			End:        m[1],
			Text:       text[m[0]:m[1]],
			Score:      boostScore(text, m[0], cr.score, cr.spec.ContextWords),
			Recognizer: cr.spec.Name,
			order:      cr.order,
		})
	}
	return spans
}

// matchDenyList returns every case-insensitive occurrence of each deny-list
// term, with offsets in the original text.
func (cr compiledRecognizer) matchDenyList(text string) []DetectedSpan {
	var spans []DetectedSpan
	for _, term := range cr.denyList {
		if term == "" {
			continue
		}
		for from := 0; ; {
			start, end := FoldIndex(text, term, from)
			if start < 0 {
				break
			}
			spans = append(spans, DetectedSpan{
				EntityType: cr.spec.EntityType,
				Start:      start,
				End:        end,
				Text:       text[start:end],
				Score:      boostScore(text, start, cr.score, cr.spec.ContextWords),
				Recognizer: cr.spec.Name,
				order:      cr.order,
			})
			from = end
		}
	}
	return spans
}

// FoldIndex reports the first case-insensitive occurrence of term in text at
// or after byte offset from, as [start, end) byte offsets into text. Searching
// a ToLower copy is not equivalent: Unicode case mapping can change byte
// length (Ⱥ is two bytes, ⱥ is three), so offsets found in a lowered copy do
// not index the original. The match is computed rune by rune against the
// original bytes instead. Returns (-1, -1) when there is no occurrence.
func FoldIndex(text, term string, from int) (start, end int) {
	if term == "" || from < 0 {
		return -1, -1
	}
	for i := from; i < len(text); {
		if n, ok := foldPrefixLen(text[i:], term); ok {
			return i, i + n
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return -1, -1
}

// foldPrefixLen reports whether s begins with a case-insensitive match of
// term, and the byte length of the matched prefix of s.
func foldPrefixLen(s, term string) (int, bool) {
	n := 0
	for _, tr := range term {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 {
			return 0, false
		}
		if r != tr && unicode.ToLower(r) != unicode.ToLower(tr) {
			return 0, false
		}
		n += size
	}
	return n, true
}

// boostScore applies the context-keyword boost when any keyword appears
// within ContextWindowChars before position. The result is capped at 1.0.
func boostScore(text string, position int, base float64, contextWords []string) float64 {
	if len(contextWords) == 0 {
		return base
	}
	start := position - ContextWindowChars
	if start < 0 {
		start = 0
	}
	window := strings.ToLower(text[start:position])

	for _, cw := range contextWords {
		if strings.Contains(window, strings.ToLower(cw)) {
			boosted := base + ContextBoost
			if boosted > 1.0 {
				boosted = 1.0
			}
			return boosted
		}
	}
	return base
}
