package scrub

import (
	"fmt"

	"github.com/albertopd/secureprompt/patterns"
)

// DefaultSpecs returns the built-in recognizer table parsed from the
// embedded recognizers.yaml. First layer in the merge chain.
func DefaultSpecs() ([]RecognizerSpec, error) {
	rf, err := ParseRecognizerFile(patterns.RecognizersYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded recognizer table: %w", err)
	}
	return rf.Recognizers, nil
}

// NewDefaultRegistry builds a registry from the embedded defaults, with an
// optional operator override file layered on top (empty path skips the
// overlay; a missing file is a no-op).
func NewDefaultRegistry(overridePath string) (*Registry, error) {
	defaults, err := DefaultSpecs()
	if err != nil {
		return nil, err
	}

	specs := defaults
	if overridePath != "" {
		rf, err := LoadRecognizerFile(overridePath)
		if err != nil {
			return nil, err
		}
		if rf != nil {
			specs = MergeSpecs(defaults, rf.Recognizers)
		}
	}

	return NewRegistry(specs)
}
