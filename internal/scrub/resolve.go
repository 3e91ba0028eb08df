package scrub

import (
	"fmt"
	"sort"
)

// resolvedSpan is a detected span with its placeholder token assigned,
// still in original-text coordinates.
type resolvedSpan struct {
	DetectedSpan
	Token string
}

// resolve orders raw spans and assigns placeholder tokens.
//
// Spans are sorted globally by (start asc, score desc), ties broken by
// recognizer registration order, so the output is identical no matter in
// which order detectors ran. Exact duplicates within an entity type (same
// start and end, reported by several recognizers) collapse to the
// highest-score one. A type with a single surviving span gets <TYPE>; a type
// with N>1 spans gets <TYPE_1>..<TYPE_N> numbered in left-to-right reading
// order.
//
// Overlap across DIFFERENT entity types is deliberately not arbitrated here:
// the tokenizer applies spans in ascending start order and whichever is
// applied last wins the character range.
func resolve(spans []DetectedSpan) []resolvedSpan {
	if len(spans) == 0 {
		return nil
	}

	sorted := make([]DetectedSpan, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].order < sorted[j].order
	})

	// Collapse exact duplicates per entity type; the sort put the winner first.
	type dupKey struct {
		entityType string
		start, end int
	}
	seen := make(map[dupKey]bool, len(sorted))
	deduped := sorted[:0]
	for _, s := range sorted {
		k := dupKey{s.EntityType, s.Start, s.End}
		if seen[k] {
			continue
		}
		seen[k] = true
		deduped = append(deduped, s)
	}

	counts := make(map[string]int, len(deduped))
	for _, s := range deduped {
		counts[s.EntityType]++
	}

	resolved := make([]resolvedSpan, 0, len(deduped))
	ordinal := make(map[string]int, len(counts))
	for _, s := range deduped {
		token := "<" + s.EntityType + ">"
		if counts[s.EntityType] > 1 {
			ordinal[s.EntityType]++
			token = fmt.Sprintf("<%s_%d>", s.EntityType, ordinal[s.EntityType])
		}
		resolved = append(resolved, resolvedSpan{DetectedSpan: s, Token: token})
	}

	return resolved
}
