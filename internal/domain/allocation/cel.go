package allocation

import (
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"

	"foodcoop/internal/core/apperror"
)

// ExpressionPolicy ranks requests by a CEL expression evaluated per request.
// Lower values are served first; equal values fall back to arrival order.
//
// Available variables: quantity (int), tolerance (int), requested_at (int,
// unix seconds), subgroup_id (string). The expression must yield int or double,
// for example "-quantity" to favor large firm requests.
type ExpressionPolicy struct {
	expr    string
	program cel.Program
}

// NewExpressionPolicy compiles expr once; the policy is safe for concurrent use.
func NewExpressionPolicy(expr string) (*ExpressionPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("quantity", cel.IntType),
		cel.Variable("tolerance", cel.IntType),
		cel.Variable("requested_at", cel.IntType),
		cel.Variable("subgroup_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewBusinessRule(apperror.CodeInvalidAllocation, "allocation expression does not compile").
			WithDetail("expression", expr).
			WithCause(issues.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.IntType) && !out.IsExactType(cel.DoubleType) {
		return nil, apperror.NewBusinessRule(apperror.CodeInvalidAllocation, "allocation expression must return int or double").
			WithDetail("expression", expr).
			WithDetail("type", out.String())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	return &ExpressionPolicy{expr: expr, program: program}, nil
}

// Name implements Policy.
func (p *ExpressionPolicy) Name() string { return "cel:" + p.expr }

// Rank implements Policy.
func (p *ExpressionPolicy) Rank(requests []Request) ([]int, error) {
	keys := make([]float64, len(requests))
	for i, r := range requests {
		key, err := p.key(r)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	order := identity(len(requests))
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case keys[a] < keys[b]:
			return -1
		case keys[a] > keys[b]:
			return 1
		}
		return compareArrival(requests[a], requests[b])
	})
	return order, nil
}

func (p *ExpressionPolicy) key(r Request) (float64, error) {
	out, _, err := p.program.Eval(map[string]any{
		"quantity":     int64(r.Quantity),
		"tolerance":    int64(r.Tolerance),
		"requested_at": r.RequestedAt.Unix(),
		"subgroup_id":  r.SubgroupID.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("evaluate %q for subgroup %s: %w", p.expr, r.SubgroupID, err)
	}

	switch v := out.Value().(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("expression %q returned %T", p.expr, v)
	}
}

// PolicyFromConfig returns FCFS for "" or "fcfs", and an ExpressionPolicy otherwise.
func PolicyFromConfig(value string) (Policy, error) {
	if value == "" || value == "fcfs" {
		return FirstComeFirstServed{}, nil
	}
	return NewExpressionPolicy(value)
}
