//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

// Package expr implements the JSON-serializable expression language shared by
// field validation rules and field calculation rules.
//
// An expression is a tree of tagged nodes. Evaluation is a total function:
// malformed nodes, unknown operators and missing field references evaluate to
// nil (undefined) instead of raising, so one bad rule degrades gracefully
// rather than aborting row computation.
package expr

// Operator tags understood by the evaluator. Raw expressions produced by the
// AI layer may carry symbolic aliases ("==", ">=", ...); Normalize maps those
// onto this closed vocabulary.
const (
	// OpConst is a literal value.
	OpConst = "const"
	// OpField references a field by bare id or qualified "gridId.fieldId" path.
	OpField = "field"
	// OpAdd is variadic addition.
	OpAdd = "add"
	// OpMul is variadic multiplication.
	OpMul = "mul"
	// OpSub is binary subtraction.
	OpSub = "sub"
	// OpDiv is binary division.
	OpDiv = "div"
	// OpEq is strict structural equality.
	OpEq = "eq"
	// OpNeq is strict structural inequality.
	OpNeq = "neq"
	// OpGt is numeric greater-than.
	OpGt = "gt"
	// OpGte is numeric greater-or-equal.
	OpGte = "gte"
	// OpLt is numeric less-than.
	OpLt = "lt"
	// OpLte is numeric less-or-equal.
	OpLte = "lte"
	// OpAnd is variadic short-circuit conjunction.
	OpAnd = "and"
	// OpOr is variadic short-circuit disjunction.
	OpOr = "or"
	// OpNot is unary negation.
	OpNot = "not"
	// OpIf is a conditional with cond/then/else branches.
	OpIf = "if"
	// OpRegex matches the wrapped value node against a pattern.
	OpRegex = "regex"
)

// Node is one node of an expression tree. The Op tag decides which of the
// remaining fields are meaningful; unused fields stay at their zero value so
// the JSON form carries only what the operator needs.
type Node struct {
	// Op is the operator tag.
	Op string `json:"op"`
	// Value is the literal for const nodes.
	Value any `json:"value,omitempty"`
	// Field is the referenced field path for field nodes.
	Field string `json:"field,omitempty"`
	// Args holds the operands of variadic operators (add, mul, and, or) and
	// the legacy two-element form of binary operators.
	Args []*Node `json:"args,omitempty"`
	// Left and Right are the operands of binary operators.
	Left  *Node `json:"left,omitempty"`
	Right *Node `json:"right,omitempty"`
	// Cond, Then and Else are the branches of an if node.
	Cond *Node `json:"cond,omitempty"`
	Then *Node `json:"then,omitempty"`
	Else *Node `json:"else,omitempty"`
	// Pattern is the regular expression of a regex node.
	Pattern string `json:"pattern,omitempty"`
}

// Const builds a literal node.
func Const(v any) *Node {
	return &Node{Op: OpConst, Value: v}
}

// Field builds a field reference node.
func Field(path string) *Node {
	return &Node{Op: OpField, Field: path}
}

// Context supplies field values during evaluation. Keys hold both the bare
// field id and the qualified "gridId.fieldId" form so expressions can address
// the current grid implicitly or another field explicitly.
type Context map[string]any

// Lookup resolves a field path against the context.
func (c Context) Lookup(path string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[path]
	return v, ok
}
