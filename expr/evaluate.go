//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package expr

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Evaluate computes the value of node against ctx. It never panics and never
// returns an error: unknown operators, malformed nodes and unresolvable field
// references evaluate to nil, and non-numeric operands of arithmetic
// operators produce NaN.
func Evaluate(node *Node, ctx Context) any {
	if node == nil {
		return nil
	}
	switch node.Op {
	case OpConst:
		return node.Value
	case OpField:
		v, _ := ctx.Lookup(node.Field)
		return v
	case OpAdd:
		return evalVariadic(node, ctx, 0, func(acc, x float64) float64 { return acc + x })
	case OpMul:
		return evalVariadic(node, ctx, 1, func(acc, x float64) float64 { return acc * x })
	case OpSub:
		l, r, ok := evalBinaryNumeric(node, ctx)
		if !ok {
			return math.NaN()
		}
		return l - r
	case OpDiv:
		l, r, ok := evalBinaryNumeric(node, ctx)
		if !ok {
			return math.NaN()
		}
		return l / r
	case OpEq:
		l, r := evalBinaryOperands(node, ctx)
		return strictEqual(l, r)
	case OpNeq:
		l, r := evalBinaryOperands(node, ctx)
		return !strictEqual(l, r)
	case OpGt:
		return compareNumeric(node, ctx, func(l, r float64) bool { return l > r })
	case OpGte:
		return compareNumeric(node, ctx, func(l, r float64) bool { return l >= r })
	case OpLt:
		return compareNumeric(node, ctx, func(l, r float64) bool { return l < r })
	case OpLte:
		return compareNumeric(node, ctx, func(l, r float64) bool { return l <= r })
	case OpAnd:
		for _, arg := range operands(node) {
			if !Truthy(Evaluate(arg, ctx)) {
				return false
			}
		}
		return true
	case OpOr:
		for _, arg := range operands(node) {
			if Truthy(Evaluate(arg, ctx)) {
				return true
			}
		}
		return false
	case OpNot:
		args := operands(node)
		if len(args) == 0 {
			return nil
		}
		return !Truthy(Evaluate(args[0], ctx))
	case OpIf:
		if node.Then == nil && node.Else == nil {
			return nil
		}
		if Truthy(Evaluate(node.Cond, ctx)) {
			return Evaluate(node.Then, ctx)
		}
		return Evaluate(node.Else, ctx)
	case OpRegex:
		return evalRegex(node, ctx)
	default:
		return nil
	}
}

// operands returns a node's operand list, accepting both the canonical args
// form and the legacy {left,right} form.
func operands(node *Node) []*Node {
	if len(node.Args) > 0 {
		return node.Args
	}
	var out []*Node
	if node.Left != nil {
		out = append(out, node.Left)
	}
	if node.Right != nil {
		out = append(out, node.Right)
	}
	return out
}

func evalVariadic(node *Node, ctx Context, identity float64, combine func(acc, x float64) float64) any {
	args := operands(node)
	if len(args) == 0 {
		return nil
	}
	acc := identity
	for _, arg := range args {
		n, ok := ToNumber(Evaluate(arg, ctx))
		if !ok {
			return math.NaN()
		}
		acc = combine(acc, n)
	}
	return acc
}

func evalBinaryOperands(node *Node, ctx Context) (any, any) {
	if node.Left != nil || node.Right != nil {
		return Evaluate(node.Left, ctx), Evaluate(node.Right, ctx)
	}
	if len(node.Args) >= 2 {
		return Evaluate(node.Args[0], ctx), Evaluate(node.Args[1], ctx)
	}
	if len(node.Args) == 1 {
		return Evaluate(node.Args[0], ctx), nil
	}
	return nil, nil
}

func evalBinaryNumeric(node *Node, ctx Context) (float64, float64, bool) {
	lv, rv := evalBinaryOperands(node, ctx)
	l, lok := ToNumber(lv)
	r, rok := ToNumber(rv)
	return l, r, lok && rok
}

func compareNumeric(node *Node, ctx Context, cmp func(l, r float64) bool) any {
	l, r, ok := evalBinaryNumeric(node, ctx)
	if !ok || math.IsNaN(l) || math.IsNaN(r) {
		return false
	}
	return cmp(l, r)
}

func evalRegex(node *Node, ctx Context) any {
	re, err := regexp.Compile(node.Pattern)
	if err != nil {
		return nil
	}
	args := operands(node)
	if len(args) == 0 {
		return nil
	}
	v := Evaluate(args[0], ctx)
	if v == nil {
		return false
	}
	return re.MatchString(ToString(v))
}

// ToNumber coerces v to a float64. Numeric-looking strings parse; booleans,
// nil and everything else do not.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN(), false
		}
		return f, true
	default:
		return math.NaN(), false
	}
}

// ToString renders v the way it would appear in a row cell.
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

// Truthy reports whether v counts as true for boolean operators: nil, false,
// zero, NaN and the empty string are falsy, everything else is truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		if n, ok := ToNumber(v); ok {
			return n != 0 && !math.IsNaN(n)
		}
		return true
	}
}

// strictEqual compares two values structurally. Numbers compare by value
// across concrete types; everything else falls back to deep equality.
func strictEqual(l, r any) bool {
	ln, lok := numericValue(l)
	rn, rok := numericValue(r)
	if lok && rok {
		return ln == rn
	}
	if lok != rok {
		return false
	}
	return reflect.DeepEqual(l, r)
}

// numericValue is like ToNumber but does not coerce strings: "5" and 5 are
// not strictly equal.
func numericValue(v any) (float64, bool) {
	switch v.(type) {
	case string, nil, bool:
		return 0, false
	default:
		return ToNumber(v)
	}
}
