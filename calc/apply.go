//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package calc

import (
	"reflect"

	"trpc.group/trpc-go/trpc-tracker-go/expr"
	"trpc.group/trpc-go/trpc-tracker-go/schema"
)

// Result is the outcome of applying a plan to one row.
type Result struct {
	// Row is the row after calculation. When no target changed it is the
	// original row object, so callers can use identity to skip persistence
	// and re-render.
	Row schema.Row
	// UpdatedFieldIDs lists the targets whose value actually changed, in
	// evaluation order.
	UpdatedFieldIDs []string
	// SkippedCyclicTargets lists the targets excluded from evaluation
	// because they participate in a circular definition, sorted.
	SkippedCyclicTargets []string
}

// Apply evaluates the impacted targets of plan against row and returns the
// resulting row. changedFieldIDs narrows the work to targets transitively
// affected by those fields; omitting it recomputes every target. The input
// row is never mutated: a fresh row is returned only when at least one
// target value changed.
//
// A malformed target expression is not fatal: it evaluates to nil, which
// replaces the previous value like any other computed result.
func Apply(plan *Plan, row schema.Row, changedFieldIDs ...string) Result {
	if plan == nil || len(plan.rulesByTarget) == 0 {
		return Result{Row: row}
	}

	impacted := plan.impactSet(changedFieldIDs)
	order, cyclic := plan.evaluationOrder(impacted)

	// Seed the value map with both the bare and the qualified form of every
	// field so expressions can use either.
	values := make(expr.Context, 2*len(row))
	for field, v := range row {
		values[field] = v
		values[plan.gridID+"."+field] = v
	}

	out := row
	copied := false
	var updated []string
	for _, target := range order {
		v := expr.Evaluate(plan.rulesByTarget[target].Expr, values)
		// Later targets in the same pass must see this fresh value even if
		// it turns out to equal the old one.
		values[target] = v
		values[plan.gridID+"."+target] = v

		prev, existed := row[target]
		if existed && identical(prev, v) {
			continue
		}
		if !existed && v == nil {
			continue
		}
		if !copied {
			out = make(schema.Row, len(row)+len(order))
			for k, rv := range row {
				out[k] = rv
			}
			copied = true
		}
		out[target] = v
		updated = append(updated, target)
	}
	return Result{Row: out, UpdatedFieldIDs: updated, SkippedCyclicTargets: cyclic}
}

// identical reports whether a computed value equals the previous one.
// Numeric values compare by value across concrete types; everything else
// compares deeply.
func identical(prev, next any) bool {
	if prev == nil && next == nil {
		return true
	}
	pn, pok := expr.ToNumber(prev)
	nn, nok := expr.ToNumber(next)
	if pok && nok {
		_, prevIsString := prev.(string)
		_, nextIsString := next.(string)
		if prevIsString == nextIsString {
			return pn == nn
		}
		return false
	}
	return reflect.DeepEqual(prev, next)
}
