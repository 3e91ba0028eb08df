package scrub

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RecognizerFile is the top-level YAML structure for a recognizer table.
type RecognizerFile struct {
	Recognizers []RecognizerSpec `yaml:"recognizers"`
}

// compiledRecognizer is a RecognizerSpec prepared for matching.
type compiledRecognizer struct {
	spec     RecognizerSpec
	re       *regexp.Regexp // pattern kind only
	denyList []string       // deny-list kind only, lowercased
	minTier  Tier
	score    float64
	order    int // registration index, the determinism tie-breaker
}

// Registry holds immutable recognizer definitions. Built once at startup and
// shared read-only across concurrent scrub calls.
type Registry struct {
	recognizers []compiledRecognizer
	tierSets    map[Tier][]string
}

// NewRegistry compiles a recognizer table into an immutable Registry.
// Two specs with the same (entityType, kind) are deduplicated so a rule
// referenced by multiple tiers is applied once; the first registration wins.
// Any unparsable spec fails with ErrConfiguration.
func NewRegistry(specs []RecognizerSpec) (*Registry, error) {
	r := &Registry{tierSets: make(map[Tier][]string)}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		key := spec.EntityType + "|" + string(spec.Kind)
		if seen[key] {
			continue
		}

		cr, err := compileSpec(spec, len(r.recognizers))
		if err != nil {
			return nil, err
		}

		seen[key] = true
		r.recognizers = append(r.recognizers, cr)
	}

	r.buildTierSets()
	return r, nil
}

func compileSpec(spec RecognizerSpec, order int) (compiledRecognizer, error) {
	var zero compiledRecognizer

	if spec.EntityType == "" {
		return zero, fmt.Errorf("%w: recognizer %q has no supported_entity", ErrConfiguration, spec.Name)
	}

	minTier, err := ParseTier(spec.MinTier)
	if err != nil {
		return zero, fmt.Errorf("recognizer %q: %w", spec.Name, err)
	}

	cr := compiledRecognizer{spec: spec, minTier: minTier, score: spec.Score, order: order}

	switch spec.Kind {
	case KindPattern:
		if spec.Pattern == "" {
			return zero, fmt.Errorf("%w: pattern recognizer %q has no regex", ErrConfiguration, spec.Name)
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return zero, fmt.Errorf("%w: compiling regex in recognizer %q: %v", ErrConfiguration, spec.Name, err)
		}
		cr.re = re
		if cr.score == 0 {
			cr.score = DefaultPatternScore
		}
	case KindDenyList:
		if len(spec.DenyList) == 0 {
			return zero, fmt.Errorf("%w: deny-list recognizer %q has an empty deny_list", ErrConfiguration, spec.Name)
		}
		cr.denyList = make([]string, len(spec.DenyList))
		for i, term := range spec.DenyList {
			cr.denyList[i] = strings.ToLower(term)
		}
		if cr.score == 0 {
			cr.score = DefaultDenyListScore
		}
	case KindModel:
		if spec.ModelRef == "" {
			return zero, fmt.Errorf("%w: model recognizer %q has no model_ref", ErrConfiguration, spec.Name)
		}
	default:
		return zero, fmt.Errorf("%w: recognizer %q has unknown type %q", ErrConfiguration, spec.Name, spec.Kind)
	}

	return cr, nil
}

// buildTierSets precomputes the cumulative entity-type set per tier. Pure
// function of the static configuration, so computed once and cached.
func (r *Registry) buildTierSets() {
	for tier := TierC1; tier <= TierC4; tier++ {
		set := make(map[string]bool)
		for _, cr := range r.recognizers {
			if cr.minTier <= tier {
				set[cr.spec.EntityType] = true
			}
		}
		types := make([]string, 0, len(set))
		for t := range set {
			types = append(types, t)
		}
		sort.Strings(types)
		r.tierSets[tier] = types
	}
}

// EntityTypesForTier returns the cumulative entity-type set active at the
// given tier. The returned slice is a copy; the cached sets stay immutable.
func (r *Registry) EntityTypesForTier(tier Tier) ([]string, error) {
	types, ok := r.tierSets[tier]
	if !ok {
		return nil, fmt.Errorf("%w: unknown risk tier %q", ErrConfiguration, tier)
	}
	out := make([]string, len(types))
	copy(out, types)
	return out, nil
}

// Len returns the number of registered recognizers.
func (r *Registry) Len() int { return len(r.recognizers) }

// modelRecognizers returns the registered model-delegate recognizers whose
// entity type is in the requested set.
func (r *Registry) modelRecognizers(entityTypes map[string]bool) []compiledRecognizer {
	var out []compiledRecognizer
	for _, cr := range r.recognizers {
		if cr.spec.Kind == KindModel && entityTypes[cr.spec.EntityType] {
			out = append(out, cr)
		}
	}
	return out
}

// ParseRecognizerFile validates and parses recognizer YAML bytes. The bytes
// are checked against the embedded JSON schema first so malformed tables fail
// with a ConfigurationError naming the offending field.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	if err := ValidateRecognizerYAML(data); err != nil {
		return nil, err
	}
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("%w: parsing recognizer YAML: %v", ErrConfiguration, err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) when the file does not exist, so callers can
// treat a missing override file as a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	rf, err := ParseRecognizerFile(data)
	if err != nil {
		return nil, fmt.Errorf("recognizer file %s: %w", path, err)
	}
	return rf, nil
}

// MergeSpecs layers recognizer tables: later layers override earlier ones by
// recognizer name, new recognizers are appended. Used to apply an operator
// override file on top of the embedded defaults.
func MergeSpecs(layers ...[]RecognizerSpec) []RecognizerSpec {
	index := make(map[string]int)
	var merged []RecognizerSpec

	for _, layer := range layers {
		for _, spec := range layer {
			if idx, exists := index[spec.Name]; exists {
				merged[idx] = spec
			} else {
				index[spec.Name] = len(merged)
				merged = append(merged, spec)
			}
		}
	}

	return merged
}
