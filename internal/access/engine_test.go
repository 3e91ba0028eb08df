package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertopd/secureprompt/internal/requestctx"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background())
	require.NoError(t, err)
	return e
}

func TestAuthorize(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		role          string
		action        string
		justification string
		allowed       bool
	}{
		{"scrubber can scrub", RoleScrubber, ActionScrub, "", true},
		{"descrubber can scrub", RoleDescrubber, ActionScrub, "", true},
		{"admin can scrub", RoleAdmin, ActionScrub, "", true},
		{"auditor cannot scrub", RoleAuditor, ActionScrub, "", false},

		{"scrubber cannot descrub", RoleScrubber, ActionDescrub, "case 42", false},
		{"descrubber can descrub with justification", RoleDescrubber, ActionDescrub, "case 42", true},
		{"admin can descrub with justification", RoleAdmin, ActionDescrub, "case 42", true},
		{"descrub without justification denied", RoleDescrubber, ActionDescrub, "", false},
		{"descrub with blank justification denied", RoleAdmin, ActionDescrub, "   ", false},

		{"auditor can read audit", RoleAuditor, ActionAuditRead, "", true},
		{"admin can read audit", RoleAdmin, ActionAuditRead, "", true},
		{"scrubber cannot read audit", RoleScrubber, ActionAuditRead, "", false},
		{"descrubber cannot read audit", RoleDescrubber, ActionAuditRead, "", false},

		{"unknown role denied", "superuser", ActionScrub, "", false},
		{"empty role denied", "", ActionScrub, "", false},
		{"unknown action denied", RoleAdmin, "export_everything", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Authorize(ctx, requestctx.Principal{CorpKey: "acme", Role: tt.role}, tt.action, tt.justification)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.Equal(t, "allow", d.Action)
				assert.Empty(t, d.Reasons)
			} else {
				assert.Equal(t, "deny", d.Action)
				assert.NotEmpty(t, d.Reasons)
			}
		})
	}
}

func TestAuthorizeDenyReasonsAccumulate(t *testing.T) {
	e := newEngine(t)

	d, err := e.Authorize(context.Background(), requestctx.Principal{Role: RoleScrubber}, ActionDescrub, "")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Len(t, d.Reasons, 2, "wrong role and missing justification both reported")
}
