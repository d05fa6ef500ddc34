// Package insights provides the CEL-Go based insight summarizer.
// It derives short display statements from predictions and aggregates
// using an ordered list of threshold rules.
package insights

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/heron-analytics/heron/internal/domain"
)

// Engine compiles and evaluates insight rules. Rules form a static
// ordered list per scope; evaluation is all-matches-emit in ascending
// rank order, with no hidden precedence between rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled []*CompiledRule // sorted by (Rank, ID)
}

// CompiledRule holds a pre-compiled CEL program for one rule.
type CompiledRule struct {
	Rule    *domain.InsightRule
	Program cel.Program
}

// NewEngine creates an insight engine with the evaluation variables
// for both scopes declared.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		// Churn scope
		cel.Variable("probability", cel.DoubleType),
		cel.Variable("risk_label", cel.StringType),
		cel.Variable("threshold", cel.DoubleType),
		// Incidents scope
		cel.Variable("total_incidents", cel.IntType),
		cel.Variable("sla_breach_rate", cel.DoubleType),
		cel.Variable("avg_resolution_hours", cel.DoubleType),
		cel.Variable("total_financial_impact", cel.DoubleType),
		cel.Variable("repeated_rate", cel.DoubleType),
		cel.Variable("top_category", cel.StringType),
		cel.Variable("top_category_count", cel.IntType),
		cel.Variable("worst_subsystem", cel.StringType),
		cel.Variable("worst_subsystem_hours", cel.DoubleType),
		cel.Variable("top_breach_root_cause", cel.StringType),
		cel.Variable("top_breach_root_cause_pct", cel.DoubleType),
		cel.Variable("top_impact_category", cel.StringType),
		cel.Variable("top_impact_category_total", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.InsightRule) error {
	if rule == nil {
		return fmt.Errorf("insight rule is required")
	}
	_, err := e.compileRule(rule)
	return err
}

// LoadRules compiles and appends enabled rules, keeping rank order.
func (e *Engine) LoadRules(rules []*domain.InsightRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		e.compiled = append(e.compiled, compiled)
	}
	sortCompiled(e.compiled)
	return nil
}

// ReloadRules replaces all loaded rules. Used for hot reload from the
// repository; readers in flight keep the old slice.
func (e *Engine) ReloadRules(rules []*domain.InsightRule) error {
	fresh := make([]*CompiledRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		fresh = append(fresh, compiled)
	}
	sortCompiled(fresh)

	e.mu.Lock()
	e.compiled = fresh
	e.mu.Unlock()
	return nil
}

// GetLoadedRules returns the currently loaded rule configurations in
// evaluation order.
func (e *Engine) GetLoadedRules() []*domain.InsightRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.InsightRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		rules = append(rules, c.Rule)
	}
	return rules
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = nil
	return nil
}

// evaluate runs all rules of one scope against an activation and emits
// an insight for every rule whose expression is true, in rank order.
// A rule that fails to evaluate is skipped, never fatal: insights are
// display-only.
func (e *Engine) evaluate(scope string, activation map[string]any, vars map[string]string) []domain.Insight {
	e.mu.RLock()
	compiled := e.compiled
	e.mu.RUnlock()

	var out []domain.Insight
	for _, c := range compiled {
		if c.Rule.Scope != scope {
			continue
		}
		val, _, err := c.Program.Eval(activation)
		if err != nil {
			continue
		}
		matched, ok := val.(types.Bool)
		if !ok || !bool(matched) {
			continue
		}
		out = append(out, domain.Insight{
			RuleID:   c.Rule.ID,
			Severity: c.Rule.Severity,
			Message:  renderMessage(c.Rule.Message, vars),
		})
	}
	return out
}

// renderMessage fills {placeholder} tokens from the evaluated context.
func renderMessage(msg string, vars map[string]string) string {
	for k, v := range vars {
		msg = strings.ReplaceAll(msg, "{"+k+"}", v)
	}
	return msg
}

func (e *Engine) compileRule(rule *domain.InsightRule) (*CompiledRule, error) {
	if rule.Scope != domain.ScopeChurn && rule.Scope != domain.ScopeIncidents {
		return nil, fmt.Errorf("rule %s: unknown scope %q", rule.ID, rule.Scope)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{Rule: rule, Program: program}, nil
}

func sortCompiled(compiled []*CompiledRule) {
	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Rule.Rank != compiled[j].Rule.Rank {
			return compiled[i].Rule.Rank < compiled[j].Rule.Rank
		}
		return compiled[i].Rule.ID < compiled[j].Rule.ID
	})
}
