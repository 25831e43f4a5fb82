// Package rules provides the CEL-Go based policy rule engine.
// Policy rules are operator-defined gates evaluated after the hard rules.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// ErrInvalidRule is returned when a policy rule cannot be loaded.
var ErrInvalidRule = errors.New("invalid policy rule")

// Variables exposed to policy expressions. Absent context fields are null,
// and each has a matching <name>_present flag.
var variableNames = []string{
	"net_monthly_income",
	"payroll_discount_ratio",
	"current_age",
	"age_at_maturity",
	"bureau_score",
	"active_delinquency",
	"had_charge_offs",
	"payer",
	"historical_days_past_due",
	"recently_normalized",
	"requested_amount",
	"requested_term_months",
	"declared_gross_income",
	"tenure_months",
	"client_type",
	"recent_applications",
}

// Engine is the CEL-based policy rule engine.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled []*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.PolicyRule
	Program cel.Program
}

// NewEngine creates a new policy rule engine.
func NewEngine() (*Engine, error) {
	opts := []cel.EnvOption{cel.CrossTypeNumericComparisons(true)}
	for _, name := range variableNames {
		opts = append(opts,
			cel.Variable(name, cel.DynType),
			cel.Variable(name+"_present", cel.BoolType),
		)
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(rule *domain.PolicyRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}

	e.mu.RLock()
	compiled, err := e.compileRule(rule)
	e.mu.RUnlock()
	if err != nil {
		return err
	}
	return checkAbsentInputs(compiled)
}

// checkAbsentInputs runs the rule with every optional input absent. A rule
// that cannot evaluate then reads an optional variable without its _present
// guard, and would be skipped at runtime instead of rejecting.
func checkAbsentInputs(r *CompiledRule) error {
	out, _, err := r.Program.Eval(Activation(&domain.DecisionContext{}, 0))
	if err != nil {
		return fmt.Errorf("%w: rule %s fails when optional inputs are absent (%v); guard them with their _present flag",
			ErrInvalidRule, r.Rule.ID, err)
	}
	if _, ok := out.(types.Bool); !ok {
		return fmt.Errorf("%w: rule %s: expression must return bool, got %v", ErrInvalidRule, r.Rule.ID, out.Value())
	}
	return nil
}

// LoadRule compiles a rule and adds it, replacing any loaded rule with the same ID.
// Disabled rules are removed.
func (e *Engine) LoadRule(rule *domain.PolicyRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make([]*CompiledRule, 0, len(e.compiled)+1)
	for _, c := range e.compiled {
		if c.Rule.ID != rule.ID {
			next = append(next, c)
		}
	}

	if rule.Enabled {
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		next = append(next, compiled)
	}

	sortRules(next)
	e.compiled = next
	return nil
}

// UnloadRule removes a rule by ID. It reports whether the rule was loaded.
func (e *Engine) UnloadRule(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, c := range e.compiled {
		if c.Rule.ID == ruleID {
			e.compiled = append(e.compiled[:i:i], e.compiled[i+1:]...)
			return true
		}
	}
	return false
}

// ReloadRules replaces all loaded rules. Nothing changes if any rule fails to compile.
func (e *Engine) ReloadRules(rules []*domain.PolicyRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make([]*CompiledRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		next = append(next, compiled)
	}

	sortRules(next)
	e.compiled = next
	return nil
}

// Input is what policy rules are evaluated against.
type Input struct {
	Context            *domain.DecisionContext
	RecentApplications int64
}

// Outcome is the result of running the policy rules.
type Outcome struct {
	Result    domain.RuleResult
	Evaluated int
	// Errors lists rules that failed to evaluate; such rules are skipped.
	Errors []string
}

// Evaluate runs the loaded rules in priority order. The first rule whose
// expression is true rejects. A rule that errors or yields a non-bool is
// recorded in Errors and does not reject.
func (e *Engine) Evaluate(ctx context.Context, in *Input) Outcome {
	e.mu.RLock()
	rules := e.compiled
	e.mu.RUnlock()

	out := Outcome{Result: domain.Approve()}
	if len(rules) == 0 || in == nil || in.Context == nil {
		return out
	}

	activation := Activation(in.Context, in.RecentApplications)

	for _, r := range rules {
		if ctx.Err() != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", r.Rule.ID, ctx.Err()))
			return out
		}

		out.Evaluated++
		val, _, err := r.Program.Eval(activation)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", r.Rule.ID, err))
			continue
		}

		hit, ok := val.(types.Bool)
		if !ok {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: expression returned %s, not bool", r.Rule.ID, val.Type().TypeName()))
			continue
		}

		if bool(hit) {
			out.Result = domain.Reject(r.Rule.ID, r.Rule.RejectionCode, r.Rule.Reason, map[string]any{
				"expression": r.Rule.Expression,
				"version":    r.Rule.Version,
			})
			return out
		}
	}

	return out
}

// Activation builds the CEL variables for a decision context.
func Activation(c *domain.DecisionContext, recentApplications int64) map[string]any {
	vars := make(map[string]any, len(variableNames)*2)

	set := func(name string, present bool, value func() any) {
		vars[name+"_present"] = present
		if present {
			vars[name] = value()
		} else {
			vars[name] = types.NullValue
		}
	}

	set("net_monthly_income", c.NetMonthlyIncome != nil, func() any { return *c.NetMonthlyIncome })
	set("payroll_discount_ratio", c.PayrollDiscountRatio != nil, func() any { return *c.PayrollDiscountRatio })
	set("current_age", c.CurrentAge != nil, func() any { return int64(*c.CurrentAge) })
	set("age_at_maturity", c.AgeAtMaturity != nil, func() any { return int64(*c.AgeAtMaturity) })
	set("bureau_score", c.BureauScore != nil, func() any { return int64(*c.BureauScore) })
	set("active_delinquency", c.ActiveDelinquency != nil, func() any { return *c.ActiveDelinquency })
	set("had_charge_offs", c.HadChargeOffs != nil, func() any { return *c.HadChargeOffs })
	set("payer", c.Payer != nil, func() any { return *c.Payer })
	set("historical_days_past_due", c.Bureau != nil, func() any { return int64(c.Bureau.HistoricalDaysPastDue) })
	set("recently_normalized", c.Bureau != nil, func() any { return c.Bureau.RecentlyNormalized })

	app := c.Application
	set("requested_amount", true, func() any { return app.RequestedAmount })
	set("requested_term_months", app.RequestedTermMonths != nil, func() any { return int64(*app.RequestedTermMonths) })
	set("declared_gross_income", true, func() any { return app.DeclaredGrossIncome })
	set("tenure_months", true, func() any { return int64(app.TenureMonths()) })
	set("client_type", app.ClientType != "", func() any { return app.ClientType })
	set("recent_applications", true, func() any { return recentApplications })

	return vars
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// GetLoadedRules returns the loaded rules in evaluation order.
func (e *Engine) GetLoadedRules() []*domain.PolicyRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.PolicyRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		rules = append(rules, c.Rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = nil
	return nil
}

func (e *Engine) compileRule(rule *domain.PolicyRule) (*CompiledRule, error) {
	if rule.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if rule.Expression == "" {
		return nil, fmt.Errorf("%w: rule %s: expression is required", ErrInvalidRule, rule.ID)
	}
	if rule.RejectionCode == "" {
		return nil, fmt.Errorf("%w: rule %s: rejectionCode is required", ErrInvalidRule, rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: failed to compile rule %s: %v", ErrInvalidRule, rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if !outputType.IsExactType(cel.BoolType) && !outputType.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: rule %s: expression must return bool, got %s", ErrInvalidRule, rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{Rule: rule, Program: program}, nil
}

func sortRules(rules []*CompiledRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Rule.Priority != rules[j].Rule.Priority {
			return rules[i].Rule.Priority < rules[j].Rule.Priority
		}
		return rules[i].Rule.ID < rules[j].Rule.ID
	})
}
