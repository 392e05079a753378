//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

// Package validation compiles a field's configuration and rule list into a
// reusable plan and evaluates that plan against candidate values.
//
// A plan checks rules in order and stops at the first failure: implicit rules
// synthesized from the field config run before explicit rules, and a numeric
// type fallback runs last so number fields never silently accept unparseable
// input. Hidden and disabled fields always pass.
package validation

import (
	"fmt"
	"math"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-tracker-go/expr"
	"trpc.group/trpc-go/trpc-tracker-go/internal/plancache"
	"trpc.group/trpc-go/trpc-tracker-go/schema"
)

// Default error messages, overridable per rule via Rule.Message.
const (
	msgRequired  = "This field is required"
	msgNaN       = "Must be a number"
	msgMin       = "Must be at least %v"
	msgMax       = "Must be at most %v"
	msgMinLength = "Must be at least %d characters"
	msgMaxLength = "Must be at most %d characters"
	msgExpr      = "Invalid value"
)

// CompileInput describes one field to compile a plan for.
type CompileInput struct {
	FieldID   string
	FieldType string
	Config    schema.FieldConfig
	Rules     []*schema.Rule
}

// Plan is a compiled, immutable validation plan for one field.
type Plan struct {
	fieldID   string
	fieldType string
	bypass    bool
	rules     []*schema.Rule
}

// Option configures a Planner.
type Option func(*config)

type config struct {
	cacheSize int
}

// WithCacheSize bounds the compiled-plan cache.
func WithCacheSize(n int) Option {
	return func(c *config) {
		c.cacheSize = n
	}
}

// Planner compiles validation plans and caches them by a structural
// signature of their inputs, so repeated compiles of an identical field
// definition are free.
type Planner struct {
	cache *plancache.Cache
}

// NewPlanner creates a Planner with a bounded plan cache.
func NewPlanner(opts ...Option) *Planner {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Planner{cache: plancache.New(cfg.cacheSize)}
}

// Compile builds (or fetches from cache) the plan for the given field.
func (p *Planner) Compile(in CompileInput) *Plan {
	key := plancache.Signature(in.FieldID, in.FieldType, in.Config, in.Rules)
	if cached, ok := p.cache.Get(key); ok {
		return cached.(*Plan)
	}
	plan := compile(in)
	p.cache.Put(key, plan)
	return plan
}

func compile(in CompileInput) *Plan {
	plan := &Plan{
		fieldID:   in.FieldID,
		fieldType: in.FieldType,
		bypass:    in.Config.IsHidden || in.Config.IsDisabled,
	}
	// Implicit rules from config flags come first, explicit rules after.
	if in.Config.IsRequired {
		plan.rules = append(plan.rules, &schema.Rule{Type: schema.RuleRequired})
	}
	if in.Config.Min != nil {
		plan.rules = append(plan.rules, &schema.Rule{Type: schema.RuleMin, Value: in.Config.Min})
	}
	if in.Config.Max != nil {
		plan.rules = append(plan.rules, &schema.Rule{Type: schema.RuleMax, Value: in.Config.Max})
	}
	if in.Config.MinLength != nil {
		v := float64(*in.Config.MinLength)
		plan.rules = append(plan.rules, &schema.Rule{Type: schema.RuleMinLength, Value: &v})
	}
	if in.Config.MaxLength != nil {
		v := float64(*in.Config.MaxLength)
		plan.rules = append(plan.rules, &schema.Rule{Type: schema.RuleMaxLength, Value: &v})
	}
	plan.rules = append(plan.rules, in.Rules...)
	return plan
}

// Check evaluates value against the plan. It returns the first failing
// rule's message, or the empty string when the value passes. rowValues
// supplies sibling field values for expr rules and may be nil.
//
// Bound rules without an explicit message are deferred: their default
// message surfaces only when no later rule fails, so an expr rule carrying a
// purpose-written message wins over a synthesized config bound.
func (p *Plan) Check(value any, rowValues expr.Context) string {
	if p == nil || p.bypass {
		return ""
	}
	deferred := ""
	for _, rule := range p.rules {
		msg, immediate := p.checkRule(rule, value, rowValues)
		if msg == "" {
			continue
		}
		if immediate {
			return msg
		}
		if deferred == "" {
			deferred = msg
		}
	}
	if deferred != "" {
		return deferred
	}
	// Numeric fields reject unparseable input even without explicit rules.
	if isNumericType(p.fieldType) && !isEmpty(value) {
		if _, ok := expr.ToNumber(value); !ok {
			return msgNaN
		}
	}
	return ""
}

func (p *Plan) checkRule(rule *schema.Rule, value any, rowValues expr.Context) (msg string, immediate bool) {
	switch rule.Type {
	case schema.RuleRequired:
		if isEmpty(value) {
			return message(rule, msgRequired), true
		}
	case schema.RuleMin:
		return p.checkBound(rule, value, func(n, bound float64) bool { return n >= bound }, msgMin)
	case schema.RuleMax:
		return p.checkBound(rule, value, func(n, bound float64) bool { return n <= bound }, msgMax)
	case schema.RuleMinLength:
		if isStringType(p.fieldType) && !isEmpty(value) && rule.Value != nil {
			// Bounds count characters, not bytes.
			if utf8.RuneCountInString(expr.ToString(value)) < int(*rule.Value) {
				return message(rule, fmt.Sprintf(msgMinLength, int(*rule.Value))), true
			}
		}
	case schema.RuleMaxLength:
		if isStringType(p.fieldType) && !isEmpty(value) && rule.Value != nil {
			if utf8.RuneCountInString(expr.ToString(value)) > int(*rule.Value) {
				return message(rule, fmt.Sprintf(msgMaxLength, int(*rule.Value))), true
			}
		}
	case schema.RuleExpr:
		// The candidate value is visible to the predicate under the field's
		// own id, shadowing whatever the row currently holds.
		ctx := make(expr.Context, len(rowValues)+1)
		for k, v := range rowValues {
			ctx[k] = v
		}
		ctx[p.fieldID] = value
		if !passes(expr.Evaluate(rule.Expr, ctx)) {
			return message(rule, msgExpr), true
		}
	}
	return "", false
}

// checkBound checks a numeric bound rule. Bound rules skip empty values
// (required handles those); a value that does not coerce to a number fails
// with the numeric message, not the bound message. A bound failure without
// an authored message is deferred rather than immediate.
func (p *Plan) checkBound(rule *schema.Rule, value any, ok func(n, bound float64) bool, format string) (string, bool) {
	if isEmpty(value) || rule.Value == nil {
		return "", false
	}
	n, numeric := expr.ToNumber(value)
	if !numeric || math.IsNaN(n) {
		return msgNaN, true
	}
	if !ok(n, *rule.Value) {
		if rule.Message != "" {
			return rule.Message, true
		}
		return fmt.Sprintf(format, *rule.Value), false
	}
	return "", false
}

func message(rule *schema.Rule, fallback string) string {
	if rule.Message != "" {
		return rule.Message
	}
	return fallback
}

// passes interprets an expr rule result: false, nil and the empty string
// fail; true and any non-empty string pass.
func passes(result any) bool {
	switch r := result.(type) {
	case nil:
		return false
	case bool:
		return r
	case string:
		return r != ""
	default:
		return expr.Truthy(result)
	}
}

// isEmpty is the canonical emptiness test shared by required and the
// bound-rule skip: nil, the empty string and empty sequences are empty.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

func isNumericType(fieldType string) bool {
	return fieldType == schema.FieldTypeNumber || fieldType == schema.FieldTypeCurrency
}

func isStringType(fieldType string) bool {
	switch fieldType {
	case schema.FieldTypeText, schema.FieldTypeLongText, schema.FieldTypeURL:
		return true
	default:
		return false
	}
}
