package masking

import (
	"dorisgate.io/internal/auth"
)

// Engine applies column-based masking rules to query result rows.
type Engine struct {
	enabled bool
	rules   []Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the default rule set.
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithEnabled toggles masking globally. A disabled engine passes rows
// through untouched.
func WithEnabled(enabled bool) Option {
	return func(e *Engine) { e.enabled = enabled }
}

// NewEngine returns an enabled engine with the default rules.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{enabled: true, rules: DefaultRules()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled reports whether the engine masks anything at all.
func (e *Engine) Enabled() bool { return e.enabled }

// ApplicableRules returns the configured rule set. Clearance filtering
// happens per value in Process, so the full set is reported here.
func (e *Engine) ApplicableRules(auth.AuthContext) []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Process returns a masked copy of rows. The input is never mutated.
// Admin callers and callers whose clearance exceeds a rule's level see raw
// values. Only string values are masked; nil and non-string values pass
// through unchanged.
func (e *Engine) Process(rows []map[string]any, caller auth.AuthContext) []map[string]any {
	if rows == nil {
		return nil
	}
	if !e.enabled || caller.IsAdmin() {
		return copyRows(rows)
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		masked := make(map[string]any, len(row))
		for column, value := range row {
			masked[column] = e.maskValue(column, value, caller)
		}
		out[i] = masked
	}
	return out
}

func copyRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		dup := make(map[string]any, len(row))
		for k, v := range row {
			dup[k] = v
		}
		out[i] = dup
	}
	return out
}

func (e *Engine) maskValue(column string, value any, caller auth.AuthContext) any {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}
	for _, rule := range e.rules {
		if !e.shouldApplyRule(rule, caller) {
			continue
		}
		if rule.Matches(column) {
			return rule.Apply(s)
		}
	}
	return value
}

// shouldApplyRule reports whether the rule still binds the caller: a caller
// whose clearance dominates the rule's level above equality is trusted with
// the raw value.
func (e *Engine) shouldApplyRule(rule Rule, caller auth.AuthContext) bool {
	if caller.IsAdmin() {
		return false
	}
	return rule.SecurityLevel.Dominates(caller.SecurityLevel)
}
