package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

// DefaultLowballRule flags offers more than 15% under the asking price.
const DefaultLowballRule = "pct_vs_asking < -15"

// LowballRule is an informational signal on offers. It never blocks acceptance.
type LowballRule struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// NewLowballRule compiles a boolean expression over pct_vs_asking, amount and price.
func NewLowballRule(rule string) (*LowballRule, error) {
	src := strings.TrimSpace(rule)
	if src == "" {
		src = DefaultLowballRule
	}
	expr, err := govaluate.NewEvaluableExpression(src)
	if err != nil {
		return nil, fmt.Errorf("invalid lowball rule %q: %w", src, err)
	}
	for _, v := range expr.Vars() {
		switch v {
		case "pct_vs_asking", "amount", "price":
		default:
			return nil, fmt.Errorf("lowball rule references unknown variable %q", v)
		}
	}
	return &LowballRule{source: src, expr: expr}, nil
}

func (r *LowballRule) String() string { return r.source }

// Evaluate reports whether the offer counts as a low ball.
func (r *LowballRule) Evaluate(pctVsAsking float64, amount, price int64) (bool, error) {
	result, err := r.expr.Evaluate(map[string]interface{}{
		"pct_vs_asking": pctVsAsking,
		"amount":        float64(amount),
		"price":         float64(price),
	})
	if err != nil {
		return false, err
	}
	v, ok := result.(bool)
	if !ok {
		return false, errors.New("lowball rule did not evaluate to boolean")
	}
	return v, nil
}
