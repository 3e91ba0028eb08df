// Package patterns provides the embedded default recognizer table.
// The YAML uses a Presidio-compatible recognizer format extended with the
// min_tier field that assigns each recognizer to its lowest active risk tier.
package patterns

import _ "embed"

//go:embed recognizers.yaml
var recognizersYAML []byte

// RecognizersYAML returns the embedded default recognizer definitions.
func RecognizersYAML() []byte { return recognizersYAML }
