//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package options

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"trpc.group/trpc-go/trpc-tracker-go/expr"
)

// newCollator builds the case-insensitive collator used by string sorts.
// collate.Collator is not safe for concurrent use, so each sort gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// applyTransform runs one pipeline step over rows. Transform steps never
// fail; an unknown transform type passes rows through untouched with a
// warning, matching the degrade-gracefully contract of the engines.
func applyTransform(t *Transform, rows []map[string]any) ([]map[string]any, string) {
	switch t.Type {
	case TransformUnique:
		return uniqueRows(rows, t.Key), ""
	case TransformSort:
		return sortRows(rows, t.Key, t.Direction, t.ValueType), ""
	case TransformFilter:
		return filterRows(rows, t.Key, t.Op, t.Value), ""
	default:
		return rows, fmt.Sprintf("unknown transform type %q, rows passed through", t.Type)
	}
}

// uniqueRows keeps the first occurrence of each key value.
func uniqueRows(rows []map[string]any, key string) []map[string]any {
	seen := make(map[string]bool, len(rows))
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		k := fmt.Sprintf("%v", row[key])
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

// sortRows orders rows by key. Numeric value types compare by coerced
// number; everything else compares as collated strings. The sort is stable
// so equal keys keep their incoming order.
func sortRows(rows []map[string]any, key, direction, valueType string) []map[string]any {
	out := make([]map[string]any, len(rows))
	copy(out, rows)
	desc := direction == DirectionDesc

	if valueType == ValueTypeNumber {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := expr.ToNumber(out[i][key])
			b, _ := expr.ToNumber(out[j][key])
			if desc {
				return a > b
			}
			return a < b
		})
		return out
	}

	c := newCollator()
	sort.SliceStable(out, func(i, j int) bool {
		cmp := c.CompareString(stringValue(out[i][key]), stringValue(out[j][key]))
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
	return out
}

// filterRows keeps rows whose key value satisfies op against value.
func filterRows(rows []map[string]any, key, op string, value any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if matchesFilter(row[key], op, value) {
			out = append(out, row)
		}
	}
	return out
}

// matchesFilter applies one comparison. Equality compares loosely (numbers
// by value, everything else by string form); ordering compares numerically
// and fails closed when either side is not numeric.
func matchesFilter(cell any, op string, value any) bool {
	switch op {
	case "eq", "=", "==":
		return looseEqual(cell, value)
	case "neq", "!=":
		return !looseEqual(cell, value)
	case "gt", ">":
		return numericCompare(cell, value, func(a, b float64) bool { return a > b })
	case "gte", ">=":
		return numericCompare(cell, value, func(a, b float64) bool { return a >= b })
	case "lt", "<":
		return numericCompare(cell, value, func(a, b float64) bool { return a < b })
	case "lte", "<=":
		return numericCompare(cell, value, func(a, b float64) bool { return a <= b })
	case "contains":
		return strings.Contains(stringValue(cell), stringValue(value))
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	an, aok := expr.ToNumber(a)
	bn, bok := expr.ToNumber(b)
	if aok && bok {
		return an == bn
	}
	return stringValue(a) == stringValue(b)
}

func numericCompare(a, b any, cmp func(a, b float64) bool) bool {
	an, aok := expr.ToNumber(a)
	bn, bok := expr.ToNumber(b)
	if !aok || !bok {
		return false
	}
	return cmp(an, bn)
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s := expr.ToString(v); s != "" {
		return s
	}
	return fmt.Sprintf("%v", v)
}
