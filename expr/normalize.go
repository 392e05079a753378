//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package expr

// opAliases maps the symbolic and legacy operator spellings the AI layer
// emits onto the canonical vocabulary. Canonical ops are deliberately absent
// so the table is a pure alias map.
var opAliases = map[string]string{
	"=":        OpEq,
	"==":       OpEq,
	"===":      OpEq,
	"equals":   OpEq,
	"!=":       OpNeq,
	"!==":      OpNeq,
	">":        OpGt,
	">=":       OpGte,
	"<":        OpLt,
	"<=":       OpLte,
	"+":        OpAdd,
	"plus":     OpAdd,
	"sum":      OpAdd,
	"*":        OpMul,
	"times":    OpMul,
	"multiply": OpMul,
	"-":        OpSub,
	"minus":    OpSub,
	"subtract": OpSub,
	"/":        OpDiv,
	"divide":   OpDiv,
	"!":        OpNot,
}

// binaryOps are the strictly binary operators whose canonical shape is
// {left,right}.
var binaryOps = map[string]bool{
	OpSub: true,
	OpDiv: true,
	OpEq:  true,
	OpNeq: true,
	OpGt:  true,
	OpGte: true,
	OpLt:  true,
	OpLte: true,
}

// Normalize rewrites node into canonical form and returns a new tree; the
// input is never mutated. Canonicalization maps operator aliases, flattens
// nested add/mul chains into a single argument list, converts the legacy
// {left,right} shape of variadic operators into args, and converts the
// two-element args shape of binary operators into {left,right}. Normalize is
// idempotent: applying it to an already canonical tree returns an equal tree.
func Normalize(node *Node) *Node {
	if node == nil {
		return nil
	}
	out := *node
	if canonical, ok := opAliases[out.Op]; ok {
		out.Op = canonical
	}

	out.Left = Normalize(out.Left)
	out.Right = Normalize(out.Right)
	out.Cond = Normalize(out.Cond)
	out.Then = Normalize(out.Then)
	out.Else = Normalize(out.Else)
	if len(out.Args) > 0 {
		args := make([]*Node, 0, len(out.Args))
		for _, arg := range out.Args {
			args = append(args, Normalize(arg))
		}
		out.Args = args
	}

	switch {
	case out.Op == OpAdd || out.Op == OpMul:
		out.Args = flattenArgs(&out, out.Op)
		out.Left, out.Right = nil, nil
	case out.Op == OpAnd || out.Op == OpOr || out.Op == OpNot:
		if len(out.Args) == 0 {
			out.Args = gatherLeftRight(&out)
		}
		out.Left, out.Right = nil, nil
	case binaryOps[out.Op]:
		if out.Left == nil && out.Right == nil && len(out.Args) == 2 {
			out.Left, out.Right = out.Args[0], out.Args[1]
			out.Args = nil
		}
	}
	return &out
}

// flattenArgs collects the operands of an associative operator, splicing the
// operands of any child carrying the same operator into the parent list.
func flattenArgs(node *Node, op string) []*Node {
	args := node.Args
	if len(args) == 0 {
		args = gatherLeftRight(node)
	}
	out := make([]*Node, 0, len(args))
	for _, arg := range args {
		if arg != nil && arg.Op == op {
			out = append(out, arg.Args...)
			continue
		}
		out = append(out, arg)
	}
	return out
}

func gatherLeftRight(node *Node) []*Node {
	var out []*Node
	if node.Left != nil {
		out = append(out, node.Left)
	}
	if node.Right != nil {
		out = append(out, node.Right)
	}
	return out
}
