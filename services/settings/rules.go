package settings

import (
	"fmt"
)

// Condition is one clause of a guard rule
type Condition struct {
	Field    string      `json:"field" validate:"required"`
	Operator string      `json:"operator" validate:"oneof=eq ne gt gte lt lte in"`
	Value    interface{} `json:"value"`
}

// Rule is a guard engine rule: when every condition holds, the action is taken
type Rule struct {
	Name       string      `json:"name" validate:"required"`
	Conditions []Condition `json:"conditions" validate:"min=1,dive"`
	Action     string      `json:"action" validate:"oneof=allow decline review"`
}

// RuleBuilder builds one guard rule
type RuleBuilder struct {
	rule Rule
}

// NewRule starts a rule named name
func NewRule(name string) *RuleBuilder {
	return &RuleBuilder{rule: Rule{Name: name}}
}

// When adds a condition
func (b *RuleBuilder) When(field, operator string, value interface{}) *RuleBuilder {
	b.rule.Conditions = append(b.rule.Conditions, Condition{Field: field, Operator: operator, Value: value})
	return b
}

// Then sets the action
func (b *RuleBuilder) Then(action string) *RuleBuilder {
	b.rule.Action = action
	return b
}

// Build validates the rule
func (b *RuleBuilder) Build() (Rule, error) {
	if err := validate.Struct(b.rule); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", b.rule.Name, err)
	}
	return b.rule, nil
}

// MustBuild is Build for rules written as literals in tests
func (b *RuleBuilder) MustBuild() Rule {
	rule, err := b.Build()
	if err != nil {
		panic(err)
	}
	return rule
}
