// Package access decides who may scrub, descrub, and read the audit trail.
// Decisions come from an embedded OPA Rego policy evaluated per request.
package access

import (
	"context"
	"embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	spotel "github.com/albertopd/secureprompt/internal/otel"
	"github.com/albertopd/secureprompt/internal/requestctx"
)

//go:embed rego/*.rego
var embeddedPolicies embed.FS

var tracer = spotel.Tracer("github.com/albertopd/secureprompt/internal/access")

// Actions the policy knows about.
const (
	ActionScrub     = "scrub"
	ActionDescrub   = "descrub"
	ActionAuditRead = "audit_read"
)

// Roles assignable to API keys.
const (
	RoleScrubber   = "scrubber"
	RoleDescrubber = "descrubber"
	RoleAuditor    = "auditor"
	RoleAdmin      = "admin"
)

const policyFile = "rego/access.rego"
const policyQuery = "data.secureprompt.access.deny"

// Decision is the result of one authorization check.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Action  string   `json:"action"` // "allow" or "deny"
	Reasons []string `json:"reasons,omitempty"`
}

// Engine evaluates access rules using embedded OPA. Safe for concurrent use
// once constructed.
type Engine struct {
	prepared rego.PreparedEvalQuery
}

// NewEngine creates an access engine with the precompiled Rego policy.
func NewEngine(ctx context.Context) (*Engine, error) {
	ctx, span := tracer.Start(ctx, "access.engine.new")
	defer span.End()

	content, err := embeddedPolicies.ReadFile(policyFile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reading embedded policy %s: %w", policyFile, err)
	}

	r := rego.New(
		rego.Query(policyQuery),
		rego.Module(policyFile, string(content)),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("preparing Rego policy %s: %w", policyFile, err)
	}

	return &Engine{prepared: prepared}, nil
}

// Authorize checks whether the principal may perform action. For
// ActionDescrub the justification must be non-empty; other actions ignore it.
func (e *Engine) Authorize(ctx context.Context, p requestctx.Principal, action, justification string) (*Decision, error) {
	ctx, span := tracer.Start(ctx, "access.authorize",
		trace.WithAttributes(
			attribute.String("access.role", p.Role),
			attribute.String("access.action", action),
		))
	defer span.End()

	input := map[string]interface{}{
		"role":          p.Role,
		"action":        action,
		"justification": justification,
	}

	reasons, err := e.evaluateDeny(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	decision := &Decision{Allowed: true, Action: "allow"}
	if len(reasons) > 0 {
		decision.Allowed = false
		decision.Action = "deny"
		decision.Reasons = reasons
	}

	span.SetAttributes(
		attribute.Bool("access.allowed", decision.Allowed),
		attribute.Int("access.deny_reasons", len(decision.Reasons)),
	)
	if decision.Allowed {
		span.SetStatus(codes.Ok, "authorized")
	}

	return decision, nil
}

// evaluateDeny runs the prepared deny query, which produces a set of reason
// strings. OPA returns the set as []interface{} or, occasionally,
// map[string]interface{}.
func (e *Engine) evaluateDeny(ctx context.Context, input map[string]interface{}) ([]string, error) {
	results, err := e.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", policyFile, err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	var reasons []string
	switch v := results[0].Expressions[0].Value.(type) {
	case []interface{}:
		for _, msg := range v {
			if msgStr, ok := msg.(string); ok {
				reasons = append(reasons, msgStr)
			}
		}
	case map[string]interface{}:
		for _, msg := range v {
			if msgStr, ok := msg.(string); ok {
				reasons = append(reasons, msgStr)
			}
		}
	}

	return reasons, nil
}
