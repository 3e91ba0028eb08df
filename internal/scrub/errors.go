package scrub

import "errors"

var (
	// ErrConfiguration is returned for an unknown risk tier or an unparsable
	// recognizer spec. Fatal — never silently defaulted.
	ErrConfiguration = errors.New("invalid scrub configuration")

	// ErrDetection is returned when an entity-detection delegate fails.
	// Scrub still returns the partial result alongside this error so the
	// caller decides whether to fail the call or proceed. A scrub that finds
	// zero entities is a success, not a detection error.
	ErrDetection = errors.New("entity detection failed")

	// ErrTokenNotFound is returned when a descrub target token has no
	// corresponding stored entity.
	ErrTokenNotFound = errors.New("no entity recorded for token")

	// ErrReversalConflict is returned when a reversal request is missing
	// required input: full reversal without the original text, or selective
	// reversal without target tokens, or a corrupt entity record.
	ErrReversalConflict = errors.New("reversal conflict")
)
