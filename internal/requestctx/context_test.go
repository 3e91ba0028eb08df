package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetPrincipal_and_PrincipalFrom(t *testing.T) {
	ctx := context.Background()
	_, ok := PrincipalFrom(ctx)
	assert.False(t, ok)

	ctx2 := SetPrincipal(ctx, Principal{CorpKey: "acme", Role: "scrubber"})
	p, ok := PrincipalFrom(ctx2)
	assert.True(t, ok)
	assert.Equal(t, Principal{CorpKey: "acme", Role: "scrubber"}, p)

	_, ok = PrincipalFrom(ctx)
	assert.False(t, ok, "parent context stays untouched")

	ctx3 := SetPrincipal(ctx2, Principal{CorpKey: "other", Role: "admin"})
	p3, _ := PrincipalFrom(ctx3)
	assert.Equal(t, "other", p3.CorpKey)
	p2, _ := PrincipalFrom(ctx2)
	assert.Equal(t, "acme", p2.CorpKey)
}
