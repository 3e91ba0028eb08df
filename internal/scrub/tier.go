package scrub

import (
	"fmt"
	"strings"
)

// Tier is an ordered sensitivity classification. Higher tiers scrub a strict
// superset of the entity types of lower tiers (C1 < C2 < C3 < C4).
type Tier int

const (
	// TierC1 is public data; nothing is scrubbed.
	TierC1 Tier = iota + 1
	// TierC2 covers basic personal data (persons, contact details).
	TierC2
	// TierC3 adds financial and national identifiers.
	TierC3
	// TierC4 adds GDPR special-category data (health, beliefs, origin).
	TierC4
)

// ParseTier parses a case-insensitive tier string ("C1".."C4"). Anything
// else fails with ErrConfiguration — never a silent default.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C1":
		return TierC1, nil
	case "C2":
		return TierC2, nil
	case "C3":
		return TierC3, nil
	case "C4":
		return TierC4, nil
	default:
		return 0, fmt.Errorf("%w: unknown risk tier %q (want C1..C4)", ErrConfiguration, s)
	}
}

// String returns the canonical tier label.
func (t Tier) String() string {
	switch t {
	case TierC1:
		return "C1"
	case TierC2:
		return "C2"
	case TierC3:
		return "C3"
	case TierC4:
		return "C4"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}
