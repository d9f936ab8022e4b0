/*
rules.go - Rule engine: handler registry and dispatch

PURPOSE:
  Maps each rule type to its handler and delegates generation/evaluation.
  The registry is populated once at construction and read-only afterward,
  so concurrent queries need no synchronization.
*/
package engine

import "fmt"

// RuleEngine dispatches rule operations to the handler registered for the
// rule's type.
type RuleEngine struct {
	handlers map[RuleType]RuleHandler
}

// NewRuleEngine builds an engine with every built-in handler registered.
func NewRuleEngine() *RuleEngine {
	return newRuleEngine(
		weekdaysOnlyHandler{},
		allDaysHandler{},
		noDaysHandler{},
		usFederalBusinessDaysHandler{},
		cronExpressionHandler{},
		customDatesHandler{},
		monthlyPatternHandler{},
	)
}

func newRuleEngine(handlers ...RuleHandler) *RuleEngine {
	m := make(map[RuleType]RuleHandler, len(handlers))
	for _, h := range handlers {
		m[h.RuleType()] = h
	}
	return &RuleEngine{handlers: m}
}

// GenerateDates returns all run dates in [from, to] for the rule, sorted and
// deduplicated. An inverted range yields an empty list without consulting
// the handler.
func (e *RuleEngine) GenerateDates(rule Rule, from, to Date) ([]Date, error) {
	if from.After(to) {
		return nil, nil
	}
	h, err := e.handler(rule)
	if err != nil {
		return nil, err
	}
	return h.GenerateDates(rule, from, to)
}

// ShouldRun evaluates the rule for a single date.
func (e *RuleEngine) ShouldRun(rule Rule, date Date) (bool, error) {
	h, err := e.handler(rule)
	if err != nil {
		return false, err
	}
	return h.ShouldRun(rule, date)
}

func (e *RuleEngine) handler(rule Rule) (RuleHandler, error) {
	h, ok := e.handlers[rule.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRuleType, rule.Type)
	}
	return h, nil
}
