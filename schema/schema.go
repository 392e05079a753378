//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

// Package schema defines the declarative tracker document model: grids,
// fields, sections, layout placements, validation rules and calculation
// rules. The document is plain JSON produced by the AI layer and consumed by
// the evaluation engines; this package also provides the structural
// validation pass that gates a document before any engine sees it.
package schema

import (
	"trpc.group/trpc-go/trpc-tracker-go/expr"
)

// Field types understood by the grid renderer. Validation semantics key off
// these: length rules apply to string-like types, the numeric fallback to
// number fields.
const (
	FieldTypeText        = "text"
	FieldTypeLongText    = "long_text"
	FieldTypeNumber      = "number"
	FieldTypeCurrency    = "currency"
	FieldTypeDate        = "date"
	FieldTypeCheckbox    = "checkbox"
	FieldTypeSelect      = "select"
	FieldTypeMultiSelect = "multiselect"
	FieldTypeURL         = "url"
)

// Rule types for field validation.
const (
	RuleRequired  = "required"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RuleExpr      = "expr"
)

// Tracker is the root of a tracker document.
type Tracker struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Grids       []*Grid       `json:"grids"`
	Sections    []*Section    `json:"sections,omitempty"`
	LayoutNodes []*LayoutNode `json:"layoutNodes,omitempty"`
}

// Grid is one table of the tracker.
type Grid struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Fields []*Field `json:"fields"`
	// Calculations maps a target field id to its calculation rule. Exactly
	// one rule per target field.
	Calculations map[string]*Calculation `json:"calculations,omitempty"`
}

// Field returns the field with the given id, or nil.
func (g *Grid) Field(id string) *Field {
	for _, f := range g.Fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Grid returns the grid with the given id, or nil.
func (t *Tracker) Grid(id string) *Grid {
	for _, g := range t.Grids {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// Field is one column of a grid.
type Field struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Type   string      `json:"type"`
	Config FieldConfig `json:"config,omitempty"`
	Rules  []*Rule     `json:"rules,omitempty"`
}

// FieldConfig carries per-field behavior flags. The planner synthesizes
// implicit validation rules from these before any explicit rules run.
type FieldConfig struct {
	IsRequired bool     `json:"isRequired,omitempty"`
	IsHidden   bool     `json:"isHidden,omitempty"`
	IsDisabled bool     `json:"isDisabled,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	MinLength  *int     `json:"minLength,omitempty"`
	MaxLength  *int     `json:"maxLength,omitempty"`
	// OptionsFunction names the dynamic-options function that supplies the
	// selectable values of a select/multiselect field.
	OptionsFunction string `json:"optionsFunction,omitempty"`
}

// Rule is one explicit validation rule on a field.
type Rule struct {
	Type string `json:"type"`
	// Value is the bound for min/max/minLength/maxLength rules.
	Value *float64 `json:"value,omitempty"`
	// Expr is the predicate of an expr rule.
	Expr *expr.Node `json:"expr,omitempty"`
	// Message overrides the default error text.
	Message string `json:"message,omitempty"`
}

// Calculation derives a target field's value from other fields of the same
// grid.
type Calculation struct {
	Expr *expr.Node `json:"expr"`
}

// Section groups layout nodes under a tab.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// LayoutNode places a grid or widget inside a section.
type LayoutNode struct {
	ID        string `json:"id"`
	SectionID string `json:"sectionId"`
	GridID    string `json:"gridId,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Row is one materialized grid row: field id to cell value.
type Row = map[string]any

// GridData is the materialized row data of every grid, keyed by grid id. It
// is produced and owned by the surrounding storage/UI layer.
type GridData = map[string][]Row
