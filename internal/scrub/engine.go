package scrub

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	spotel "github.com/albertopd/secureprompt/internal/otel"
)

var tracer = spotel.Tracer("github.com/albertopd/secureprompt/internal/scrub")

// Engine binds an immutable Registry to the model-delegate detectors it may
// dispatch to. Engines are cheap, stateless per call, and safe for
// concurrent use.
type Engine struct {
	registry *Registry
	models   map[string]Detector
	minScore float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithModelDetector registers the external detector a model recognizer's
// model_ref resolves to.
func WithModelDetector(name string, d Detector) Option {
	return func(e *Engine) { e.models[name] = d }
}

// WithMinScore drops spans scoring below the threshold before resolution.
// The default of 0 keeps every candidate.
func WithMinScore(score float64) Option {
	return func(e *Engine) { e.minScore = score }
}

// NewEngine creates an engine over a registry.
func NewEngine(registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		models:   make(map[string]Detector),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scrub anonymizes text at the given risk tier. The tier string must be
// C1..C4 (case-insensitive); anything else fails with ErrConfiguration.
//
// When a model delegate fails, Scrub still returns the result built from the
// remaining recognizers together with an error wrapping ErrDetection, so the
// caller decides between failing outright and proceeding with partial
// coverage. A result with zero entities and a nil error is a clean success.
//
// Known limitation: spans of different entity types that overlap are not
// merged — the span applied last during tokenization wins that character
// range.
func (e *Engine) Scrub(ctx context.Context, text, tier, language string) (*ScrubResult, error) {
	ctx, span := tracer.Start(ctx, "scrub.scrub")
	defer span.End()

	t, err := ParseTier(tier)
	if err != nil {
		return nil, err
	}

	types, err := e.registry.EntityTypesForTier(t)
	if err != nil {
		return nil, err
	}
	typeSet := make(map[string]bool, len(types))
	for _, et := range types {
		typeSet[et] = true
	}

	if text == "" {
		return &ScrubResult{AnonymizedText: "", Entities: []AnonymizedEntity{}}, nil
	}

	spans := e.registry.detect(text, typeSet)

	var detectErrs []error
	for _, cr := range e.registry.modelRecognizers(typeSet) {
		delegateSpans, err := e.delegate(ctx, cr, text, language)
		if err != nil {
			detectErrs = append(detectErrs, err)
			continue
		}
		spans = append(spans, delegateSpans...)
	}

	if e.minScore > 0 {
		kept := spans[:0]
		for _, s := range spans {
			if s.Score >= e.minScore {
				kept = append(kept, s)
			}
		}
		spans = kept
	}

	anonymized, entities := tokenize(text, resolve(spans))

	span.SetAttributes(
		attribute.String("scrub.tier", t.String()),
		attribute.Int("scrub.entity_count", len(entities)),
		attribute.Bool("scrub.partial", len(detectErrs) > 0),
	)

	result := &ScrubResult{AnonymizedText: anonymized, Entities: entities}
	if len(detectErrs) > 0 {
		log.Warn().Int("failed_delegates", len(detectErrs)).Msg("scrub produced partial result")
		return result, errors.Join(detectErrs...)
	}
	return result, nil
}

// delegate invokes one model recognizer's external detector, restricted to
// the recognizer's declared entity type.
func (e *Engine) delegate(ctx context.Context, cr compiledRecognizer, text, language string) ([]DetectedSpan, error) {
	detector, ok := e.models[cr.spec.ModelRef]
	if !ok {
		return nil, fmt.Errorf("%w: model recognizer %q references unregistered detector %q",
			ErrDetection, cr.spec.Name, cr.spec.ModelRef)
	}

	raw, err := detector.Detect(ctx, text, language, []string{cr.spec.EntityType})
	if err != nil {
		return nil, fmt.Errorf("%w: recognizer %q (model %q): %v",
			ErrDetection, cr.spec.Name, cr.spec.ModelRef, err)
	}

	spans := make([]DetectedSpan, 0, len(raw))
	for _, s := range raw {
		// Delegates are restricted to their declared entity types; anything
		// else is dropped, not an error.
		if s.EntityType != cr.spec.EntityType {
			continue
		}
		if s.Score < 0 {
			s.Score = 0
		}
		if s.Score > 1 {
			s.Score = 1
		}
		if s.Recognizer == "" {
			s.Recognizer = cr.spec.Name
		}
		s.order = cr.order
		spans = append(spans, s)
	}
	return spans, nil
}

// Descrub reverses a prior scrub. See the package-level Descrub for the
// reversal contract; the engine method only adds tracing around it.
func (e *Engine) Descrub(ctx context.Context, req DescrubRequest) (string, error) {
	_, span := tracer.Start(ctx, "scrub.descrub")
	defer span.End()

	span.SetAttributes(
		attribute.Bool("descrub.all", req.All),
		attribute.Int("descrub.target_tokens", len(req.Tokens)),
	)

	return Descrub(req)
}
