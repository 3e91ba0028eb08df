package scrub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personEmailRegistry(t *testing.T) *Registry {
	t.Helper()
	return mustRegistry(t,
		RecognizerSpec{
			Name:       "Person names",
			EntityType: "PERSON",
			Kind:       KindPattern,
			Pattern:    `\bAlice\b|\bBob\b`,
			Score:      0.85,
			MinTier:    "C2",
		},
		RecognizerSpec{
			Name:       "Email address",
			EntityType: "EMAIL_ADDRESS",
			Kind:       KindPattern,
			Pattern:    `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Score:      0.85,
			MinTier:    "C2",
		},
	)
}

func TestScrubNumbersRepeatsLeftToRight(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))
	ctx := context.Background()

	result, err := engine.Scrub(ctx, "Alice emailed Bob and Alice called again", "C2", "en")
	require.NoError(t, err)

	assert.Equal(t, "<PERSON_1> emailed <PERSON_2> and <PERSON_3> called again", result.AnonymizedText)
	require.Len(t, result.Entities, 3)
	assert.Equal(t, "Alice", result.Entities[0].OriginalText)
	assert.Equal(t, "<PERSON_1>", result.Entities[0].ReplacementToken)
	assert.Equal(t, "Bob", result.Entities[1].OriginalText)
	assert.Equal(t, "<PERSON_2>", result.Entities[1].ReplacementToken)
	assert.Equal(t, "Alice", result.Entities[2].OriginalText)
	assert.Equal(t, "<PERSON_3>", result.Entities[2].ReplacementToken)
}

func TestScrubSingleOccurrenceHasNoSuffix(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))

	result, err := engine.Scrub(context.Background(), "Alice wrote x@y.zz today", "C2", "en")
	require.NoError(t, err)

	assert.Equal(t, "<PERSON> wrote <EMAIL_ADDRESS> today", result.AnonymizedText)
	require.Len(t, result.Entities, 2)
	assert.Equal(t, "<PERSON>", result.Entities[0].ReplacementToken)
	assert.Equal(t, "<EMAIL_ADDRESS>", result.Entities[1].ReplacementToken)
}

func TestScrubOffsetsAreInAnonymizedCoordinates(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))

	// "Alice" (5 chars, start 0) becomes "<PERSON>" (8 chars): every later
	// entity shifts by the cumulative delta of +3.
	result, err := engine.Scrub(context.Background(), "Alice wrote x@y.zz today", "C2", "en")
	require.NoError(t, err)
	require.Len(t, result.Entities, 2)

	person := result.Entities[0]
	assert.Equal(t, 0, person.Start)
	assert.Equal(t, len("<PERSON>"), person.End)

	email := result.Entities[1]
	assert.Equal(t, 12+3, email.Start, "original start 12 shifted by +3")
	assert.Equal(t, email.Start+len("<EMAIL_ADDRESS>"), email.End)
	assert.Equal(t, "x@y.zz", email.OriginalText)
	assert.Equal(t, "<EMAIL_ADDRESS>", result.AnonymizedText[email.Start:email.End])
}

func TestScrubDescrubRoundTrip(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))
	ctx := context.Background()

	texts := []string{
		"Alice emailed Bob and Alice called again",
		"Alice wrote x@y.zz today",
		"no entities at all",
		"Bob",
		"x@y.zz Alice x@y.zz",
	}

	for _, text := range texts {
		result, err := engine.Scrub(ctx, text, "C2", "en")
		require.NoError(t, err)

		restored, err := engine.Descrub(ctx, DescrubRequest{
			AnonymizedText: result.AnonymizedText,
			Entities:       result.Entities,
			All:            true,
			OriginalText:   text,
		})
		require.NoError(t, err)
		assert.Equal(t, text, restored)
	}
}

func TestScrubSelectiveRoundTrip(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))
	ctx := context.Background()

	text := "Alice emailed Bob and Alice called again"
	result, err := engine.Scrub(ctx, text, "C2", "en")
	require.NoError(t, err)

	restored, err := engine.Descrub(ctx, DescrubRequest{
		AnonymizedText: result.AnonymizedText,
		Entities:       result.Entities,
		Tokens:         []string{"<PERSON_2>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<PERSON_1> emailed Bob and <PERSON_3> called again", restored,
		"only the targeted token is restored; the rest stay placeholders")
}

func TestScrubDeterministic(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))
	ctx := context.Background()
	text := "Bob met Alice, then Bob wrote to a@b.cc and c@d.ee"

	first, err := engine.Scrub(ctx, text, "C2", "en")
	require.NoError(t, err)
	second, err := engine.Scrub(ctx, text, "C2", "en")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScrubInvalidTier(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))

	_, err := engine.Scrub(context.Background(), "Alice", "C9", "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestScrubEmptyInput(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))

	for _, tier := range []string{"C1", "C2", "C3", "C4"} {
		result, err := engine.Scrub(context.Background(), "", tier, "en")
		require.NoError(t, err)
		assert.Equal(t, &ScrubResult{AnonymizedText: "", Entities: []AnonymizedEntity{}}, result)
	}
}

func TestScrubTierC1ScrubsNothing(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))

	result, err := engine.Scrub(context.Background(), "Alice wrote x@y.zz", "C1", "en")
	require.NoError(t, err)
	assert.Equal(t, "Alice wrote x@y.zz", result.AnonymizedText)
	assert.Empty(t, result.Entities)
}

func TestScrubDenyListCaseInsensitive(t *testing.T) {
	reg := mustRegistry(t, RecognizerSpec{
		Name:       "Health terms",
		EntityType: "HEALTH",
		Kind:       KindDenyList,
		DenyList:   []string{"chronic illness"},
		MinTier:    "C4",
	})
	engine := NewEngine(reg)

	result, err := engine.Scrub(context.Background(), "Diagnosed with Chronic Illness last year", "C4", "en")
	require.NoError(t, err)
	assert.Equal(t, "Diagnosed with <HEALTH> last year", result.AnonymizedText)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Chronic Illness", result.Entities[0].OriginalText, "original casing preserved")
}

func TestScrubDenyListMultibyteCaseMapping(t *testing.T) {
	reg := mustRegistry(t, RecognizerSpec{
		Name:       "Health terms",
		EntityType: "HEALTH",
		Kind:       KindDenyList,
		DenyList:   []string{"disability"},
		MinTier:    "C4",
	})
	engine := NewEngine(reg)

	// Ⱥ (U+023A) is two bytes but its lowercase ⱥ (U+2C65) is three, so
	// offsets found in a lowered copy of the text do not index the original.
	result, err := engine.Scrub(context.Background(), "ȺȺȺȺ disability", "C4", "en")
	require.NoError(t, err)
	assert.Equal(t, "ȺȺȺȺ <HEALTH>", result.AnonymizedText)
	require.Len(t, result.Entities, 1)

	e := result.Entities[0]
	assert.Equal(t, "disability", e.OriginalText)
	assert.Equal(t, "<HEALTH>", result.AnonymizedText[e.Start:e.End])
}

func TestScrubDenyListMatchShorterThanTerm(t *testing.T) {
	// The lowered term is a byte longer than the text it matches; the span
	// must cover exactly the matched original bytes.
	reg := mustRegistry(t, RecognizerSpec{
		Name:       "Codename",
		EntityType: "PROJECT",
		Kind:       KindDenyList,
		DenyList:   []string{"Ⱥrrow"},
		MinTier:    "C4",
	})
	engine := NewEngine(reg)

	result, err := engine.Scrub(context.Background(), "the Ⱥrrow file", "C4", "en")
	require.NoError(t, err)
	assert.Equal(t, "the <PROJECT> file", result.AnonymizedText)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Ⱥrrow", result.Entities[0].OriginalText)
}

func TestScrubCollapsesExactDuplicateSpans(t *testing.T) {
	// Same (entity type, start, end) reported by two recognizers collapses to
	// the highest-score span and is tokenized once, without a numeric suffix.
	reg := mustRegistry(t,
		RecognizerSpec{
			Name:       "Health pattern",
			EntityType: "HEALTH",
			Kind:       KindPattern,
			Pattern:    `\bdisability\b`,
			Score:      0.9,
			MinTier:    "C4",
		},
		RecognizerSpec{
			Name:       "Health terms",
			EntityType: "HEALTH",
			Kind:       KindDenyList,
			DenyList:   []string{"disability"},
			Score:      0.6,
			MinTier:    "C4",
		},
	)
	engine := NewEngine(reg)

	result, err := engine.Scrub(context.Background(), "a disability claim", "C4", "en")
	require.NoError(t, err)
	assert.Equal(t, "a <HEALTH> claim", result.AnonymizedText)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "<HEALTH>", result.Entities[0].ReplacementToken)
	assert.InDelta(t, 0.9, result.Entities[0].Score, 1e-9)
}

func TestScrubCrossTypeOverlapLastWriteWins(t *testing.T) {
	// Overlap across different entity types is not arbitrated: the span
	// applied last during tokenization wins its character range, overwriting
	// part of the earlier token.
	reg := mustRegistry(t,
		RecognizerSpec{
			Name:       "Account reference",
			EntityType: "ACCOUNT",
			Kind:       KindPattern,
			Pattern:    `\bacct-\d+\b`,
			Score:      0.9,
			MinTier:    "C2",
		},
		RecognizerSpec{
			Name:       "Bare number",
			EntityType: "NUMBER",
			Kind:       KindPattern,
			Pattern:    `\b\d+\b`,
			Score:      0.8,
			MinTier:    "C2",
		},
	)
	engine := NewEngine(reg)

	result, err := engine.Scrub(context.Background(), "acct-99", "C2", "en")
	require.NoError(t, err)
	assert.Equal(t, "<ACCOUN<NUMBER>", result.AnonymizedText)
	require.Len(t, result.Entities, 2)
	assert.Equal(t, "<ACCOUNT>", result.Entities[0].ReplacementToken)
	assert.Equal(t, "<NUMBER>", result.Entities[1].ReplacementToken)
}

func TestScrubContextBoost(t *testing.T) {
	reg := mustRegistry(t, RecognizerSpec{
		Name:         "Badge",
		EntityType:   "BADGE_ID",
		Kind:         KindPattern,
		Pattern:      `\bB-\d{4}\b`,
		Score:        0.5,
		ContextWords: []string{"badge"},
		MinTier:      "C2",
	})
	engine := NewEngine(reg)
	ctx := context.Background()

	boosted, err := engine.Scrub(ctx, "employee badge B-1234", "C2", "en")
	require.NoError(t, err)
	require.Len(t, boosted.Entities, 1)
	assert.InDelta(t, 0.85, boosted.Entities[0].Score, 1e-9)

	plain, err := engine.Scrub(ctx, "reference B-1234", "C2", "en")
	require.NoError(t, err)
	require.Len(t, plain.Entities, 1)
	assert.InDelta(t, 0.5, plain.Entities[0].Score, 1e-9)
}

func TestScrubModelDelegate(t *testing.T) {
	reg := mustRegistry(t, RecognizerSpec{
		Name:       "Person (roster)",
		EntityType: "PERSON",
		Kind:       KindModel,
		ModelRef:   "roster",
		MinTier:    "C2",
	})

	delegate := DetectorFunc(func(ctx context.Context, text, language string, entityTypes []string) ([]DetectedSpan, error) {
		require.Equal(t, []string{"PERSON"}, entityTypes)
		return []DetectedSpan{
			{EntityType: "PERSON", Start: 0, End: 5, Text: text[0:5], Score: 0.95},
			{EntityType: "LOCATION", Start: 6, End: 10, Text: "xxxx", Score: 0.9}, // outside declared types, dropped
		}, nil
	})

	engine := NewEngine(reg, WithModelDetector("roster", delegate))
	result, err := engine.Scrub(context.Background(), "Karel from Ghent", "C2", "en")
	require.NoError(t, err)
	assert.Equal(t, "<PERSON> from Ghent", result.AnonymizedText)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Karel", result.Entities[0].OriginalText)
}

func TestScrubFailingDelegateYieldsPartialResult(t *testing.T) {
	reg := mustRegistry(t,
		RecognizerSpec{
			Name:       "Email address",
			EntityType: "EMAIL_ADDRESS",
			Kind:       KindPattern,
			Pattern:    `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			MinTier:    "C2",
		},
		RecognizerSpec{
			Name:       "Person (roster)",
			EntityType: "PERSON",
			Kind:       KindModel,
			ModelRef:   "roster",
			MinTier:    "C2",
		},
	)

	broken := DetectorFunc(func(ctx context.Context, text, language string, entityTypes []string) ([]DetectedSpan, error) {
		return nil, errors.New("model unavailable")
	})

	engine := NewEngine(reg, WithModelDetector("roster", broken))
	result, err := engine.Scrub(context.Background(), "mail a@b.cc", "C2", "en")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDetection)
	require.NotNil(t, result, "partial result is returned alongside the error")
	assert.Equal(t, "mail <EMAIL_ADDRESS>", result.AnonymizedText)
}

func TestScrubUnregisteredModelRef(t *testing.T) {
	reg := mustRegistry(t, RecognizerSpec{
		Name:       "Person (roster)",
		EntityType: "PERSON",
		Kind:       KindModel,
		ModelRef:   "roster",
		MinTier:    "C2",
	})
	engine := NewEngine(reg)

	result, err := engine.Scrub(context.Background(), "Karel", "C2", "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDetection)
	require.NotNil(t, result)
	assert.Equal(t, "Karel", result.AnonymizedText)
}

func TestScrubZeroEntitiesIsSuccessNotDetectionError(t *testing.T) {
	engine := NewEngine(personEmailRegistry(t))

	result, err := engine.Scrub(context.Background(), "nothing sensitive here", "C2", "en")
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Equal(t, "nothing sensitive here", result.AnonymizedText)
}

func TestScrubMinScoreFilter(t *testing.T) {
	reg := mustRegistry(t, RecognizerSpec{
		Name:       "Weak",
		EntityType: "POSTAL_CODE",
		Kind:       KindPattern,
		Pattern:    `\b[1-9][0-9]{3}\b`,
		Score:      0.3,
		MinTier:    "C2",
	})
	engine := NewEngine(reg, WithMinScore(0.5))

	result, err := engine.Scrub(context.Background(), "zone 9000", "C2", "en")
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
}
