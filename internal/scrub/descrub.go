package scrub

import (
	"fmt"
	"sort"
)

// Descrub reverses a prior scrub, fully or selectively, and returns the
// derived text. The input request is never mutated.
//
// Full reversal (req.All) returns the caller-supplied original text
// verbatim; the core never stored it, so a missing original fails with
// ErrReversalConflict.
//
// Selective reversal restores only the entities whose replacement token is
// in req.Tokens. Entities are spliced back in descending start order so a
// leftward splice is never invalidated by the positional drift of an
// earlier, more rightward one. Tokens outside the target set stay in place.
// A requested token with no stored entity fails with ErrTokenNotFound.
func Descrub(req DescrubRequest) (string, error) {
	if req.All {
		if req.OriginalText == "" {
			return "", fmt.Errorf("%w: full reversal requested without original text", ErrReversalConflict)
		}
		return req.OriginalText, nil
	}

	if len(req.Tokens) == 0 {
		return "", fmt.Errorf("%w: selective reversal requested without target tokens", ErrReversalConflict)
	}

	targets := make(map[string]bool, len(req.Tokens))
	for _, tok := range req.Tokens {
		targets[tok] = true
	}

	stored := make(map[string]bool, len(req.Entities))
	selected := make([]AnonymizedEntity, 0, len(req.Entities))
	for _, e := range req.Entities {
		stored[e.ReplacementToken] = true
		if targets[e.ReplacementToken] {
			selected = append(selected, e)
		}
	}

	for _, tok := range req.Tokens {
		if !stored[tok] {
			return "", fmt.Errorf("%w: %q", ErrTokenNotFound, tok)
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Start > selected[j].Start
	})

	out := req.AnonymizedText
	for _, e := range selected {
		if e.Start < 0 || e.End > len(out) || e.Start > e.End {
			return "", fmt.Errorf("%w: entity %q has offsets [%d,%d) outside text of length %d",
				ErrReversalConflict, e.ReplacementToken, e.Start, e.End, len(out))
		}
		out = out[:e.Start] + e.OriginalText + out[e.End:]
	}

	return out, nil
}
