// Package segment provides the CEL-based customer segmentation engine.
// Segment rules are boolean expressions over the scoring feature columns,
// evaluated against every row of a freshly built feature table.
package segment

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-retail/heron/internal/domain"
)

// Engine compiles and evaluates segment rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	rule    *domain.SegmentRule
	program cel.Program
}

// NewEngine creates a segmentation engine whose CEL environment exposes
// every scoring column as a double, plus the churn label as an int.
func NewEngine() (*Engine, error) {
	opts := make([]cel.EnvOption, 0, len(domain.ScoringColumns)+1)
	for _, col := range domain.ScoringColumns {
		opts = append(opts, cel.Variable(col, cel.DoubleType))
	}
	opts = append(opts, cel.Variable("Churn", cel.IntType))
	// Let expressions compare feature doubles against int literals.
	opts = append(opts, cel.CrossTypeNumericComparisons(true))

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it into the engine.
func (e *Engine) ValidateRule(rule *domain.SegmentRule) error {
	if rule == nil {
		return fmt.Errorf("%w: segment rule is required", domain.ErrInvalidInput)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.SegmentRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.compile(rule)
	if err != nil {
		return err
	}
	e.compiled[rule.ID] = c
	return nil
}

// LoadRules compiles and loads every enabled rule.
func (e *Engine) LoadRules(rules []*domain.SegmentRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return fmt.Errorf("rule %s: %w", rule.ID, err)
			}
		}
	}
	return nil
}

// ReloadRules clears existing rules and loads new ones.
func (e *Engine) ReloadRules(rules []*domain.SegmentRule) error {
	e.mu.Lock()
	e.compiled = make(map[string]*compiledRule)
	e.mu.Unlock()
	return e.LoadRules(rules)
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

func (e *Engine) compile(rule *domain.SegmentRule) (*compiledRule, error) {
	if rule.Expression == "" {
		return nil, fmt.Errorf("%w: rule expression is required", domain.ErrInvalidInput)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", rule.Expression, issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for %q: %w", rule.Expression, err)
	}

	return &compiledRule{rule: rule, program: program}, nil
}

// Evaluate returns the names of every loaded rule the feature row matches.
func (e *Engine) Evaluate(row *domain.CustomerFeatures) ([]string, error) {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		rules = append(rules, c)
	}
	e.mu.RUnlock()

	activation := activationFor(row)

	var matched []string
	for _, c := range rules {
		out, _, err := c.program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", c.rule.ID, err)
		}
		if b, ok := out.(types.Bool); ok && bool(b) {
			matched = append(matched, c.rule.Name)
		}
	}
	return matched, nil
}

// Tally counts, per segment, the customers whose feature rows match.
func (e *Engine) Tally(rows []domain.CustomerFeatures) (map[string]int, error) {
	if e.RuleCount() == 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	for i := range rows {
		matched, err := e.Evaluate(&rows[i])
		if err != nil {
			return nil, err
		}
		for _, name := range matched {
			counts[name]++
		}
	}
	return counts, nil
}

func activationFor(row *domain.CustomerFeatures) map[string]any {
	vec := row.Vector()
	activation := make(map[string]any, len(domain.ScoringColumns)+1)
	for i, col := range domain.ScoringColumns {
		activation[col] = vec[i]
	}
	activation["Churn"] = row.Churn
	return activation
}
