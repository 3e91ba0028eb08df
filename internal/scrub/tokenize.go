package scrub

import "strings"

// tokenize splices placeholder tokens into text and reports each replaced
// span in ANONYMIZED-text coordinates.
//
// Spans must arrive in ascending original-text start order (resolve
// guarantees this). The fold keeps a running cumulative offset — the sum of
// (token length − original length) over all previously applied spans — so
// each span lands at originalStart + offset even though token lengths differ
// from the spans they replace. When spans of different entity types overlap,
// the later splice overwrites part of the earlier token: last write wins.
func tokenize(text string, spans []resolvedSpan) (string, []AnonymizedEntity) {
	if len(spans) == 0 {
		return text, []AnonymizedEntity{}
	}

	out := text
	offset := 0
	entities := make([]AnonymizedEntity, 0, len(spans))

	for _, s := range spans {
		start := s.Start + offset
		end := s.End + offset
		if start < 0 {
			start = 0
		}
		if start > len(out) {
			start = len(out)
		}
		if end > len(out) {
			end = len(out)
		}
		if end < start {
			end = start
		}

		out = out[:start] + s.Token + out[end:]

		entities = append(entities, AnonymizedEntity{
			EntityType:       s.EntityType,
			Start:            start,
			End:              start + len(s.Token),
			OriginalText:     s.Text,
			ReplacementToken: s.Token,
			Score:            s.Score,
			Explanation:      explain(s.EntityType),
		})

		offset += len(s.Token) - (s.End - s.Start)
	}

	return out, entities
}

// explain produces the human-readable detection note stored with each
// entity, e.g. "Email address detected" for EMAIL_ADDRESS.
func explain(entityType string) string {
	words := strings.ToLower(strings.ReplaceAll(entityType, "_", " "))
	if words == "" {
		return "Entity detected"
	}
	return strings.ToUpper(words[:1]) + words[1:] + " detected"
}
