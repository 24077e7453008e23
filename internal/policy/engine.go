// Package policy decides whether a proposed HITL action needs explicit
// user approval, using an OPA rego policy over the action's risk level and
// the thread's trust level.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decisions returned by Evaluate.
const (
	DecisionAutoApprove     = "auto_approve"
	DecisionRequireApproval = "require_approval"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a policy engine from the given rego module content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.approval_policy.decision"),
		rego.Module("approval_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the approval decision for an action proposal. Input keys:
// action_type, risk_level, trust_level.
func (e *Engine) Evaluate(ctx context.Context, input map[string]any) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The default policy always defines a decision; an empty result
		// means a custom policy forgot the default rule. Fail closed.
		return DecisionRequireApproval, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionRequireApproval, nil
}

// DefaultPolicy gates every proposal behind approval except low-risk
// actions from threads above the initial trust tier.
const DefaultPolicy = `
package approval_policy

default decision := "require_approval"

decision := "auto_approve" if {
	input.risk_level == "low"
	input.trust_level != "new_user"
}
`
