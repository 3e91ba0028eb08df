package scrub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntities() []AnonymizedEntity {
	// Anonymized form of "Alice emailed Bob", with coordinates in the
	// anonymized string "<PERSON_1> emailed <PERSON_2>".
	return []AnonymizedEntity{
		{EntityType: "PERSON", Start: 0, End: 10, OriginalText: "Alice", ReplacementToken: "<PERSON_1>"},
		{EntityType: "PERSON", Start: 19, End: 29, OriginalText: "Bob", ReplacementToken: "<PERSON_2>"},
	}
}

func TestDescrubFullReturnsOriginalVerbatim(t *testing.T) {
	got, err := Descrub(DescrubRequest{
		AnonymizedText: "<PERSON_1> emailed <PERSON_2>",
		Entities:       sampleEntities(),
		All:            true,
		OriginalText:   "Alice emailed Bob",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice emailed Bob", got)
}

func TestDescrubFullWithoutOriginal(t *testing.T) {
	_, err := Descrub(DescrubRequest{
		AnonymizedText: "<PERSON_1> emailed <PERSON_2>",
		Entities:       sampleEntities(),
		All:            true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReversalConflict)
}

func TestDescrubSelectiveSingleToken(t *testing.T) {
	got, err := Descrub(DescrubRequest{
		AnonymizedText: "<PERSON_1> emailed <PERSON_2>",
		Entities:       sampleEntities(),
		Tokens:         []string{"<PERSON_2>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<PERSON_1> emailed Bob", got)
}

func TestDescrubSelectiveAllTokensEqualsOriginal(t *testing.T) {
	got, err := Descrub(DescrubRequest{
		AnonymizedText: "<PERSON_1> emailed <PERSON_2>",
		Entities:       sampleEntities(),
		Tokens:         []string{"<PERSON_1>", "<PERSON_2>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice emailed Bob", got)
}

func TestDescrubSelectiveSplicesRightToLeft(t *testing.T) {
	// Restoring the leftmost token shifts everything after it; the splice
	// order must make offsets of later (more leftward) splices still valid.
	got, err := Descrub(DescrubRequest{
		AnonymizedText: "<PERSON_1> emailed <PERSON_2>",
		Entities:       sampleEntities(),
		Tokens:         []string{"<PERSON_1>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice emailed <PERSON_2>", got)
}

func TestDescrubUnknownToken(t *testing.T) {
	_, err := Descrub(DescrubRequest{
		AnonymizedText: "<PERSON_1> emailed <PERSON_2>",
		Entities:       sampleEntities(),
		Tokens:         []string{"<IBAN_CODE>"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.Contains(t, err.Error(), "<IBAN_CODE>")
}

func TestDescrubNoTokensSelected(t *testing.T) {
	_, err := Descrub(DescrubRequest{
		AnonymizedText: "<PERSON_1> emailed <PERSON_2>",
		Entities:       sampleEntities(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReversalConflict)
}

func TestDescrubCorruptOffsets(t *testing.T) {
	_, err := Descrub(DescrubRequest{
		AnonymizedText: "short",
		Entities: []AnonymizedEntity{
			{EntityType: "PERSON", Start: 2, End: 40, OriginalText: "Alice", ReplacementToken: "<PERSON>"},
		},
		Tokens: []string{"<PERSON>"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReversalConflict)
}

func TestDescrubDoesNotMutateRequest(t *testing.T) {
	entities := sampleEntities()
	req := DescrubRequest{
		AnonymizedText: "<PERSON_1> emailed <PERSON_2>",
		Entities:       entities,
		Tokens:         []string{"<PERSON_1>", "<PERSON_2>"},
	}

	_, err := Descrub(req)
	require.NoError(t, err)
	assert.Equal(t, sampleEntities(), entities, "entity slice order is preserved")
	assert.Equal(t, "<PERSON_1> emailed <PERSON_2>", req.AnonymizedText)
}
