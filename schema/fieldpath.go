//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package schema

import "strings"

// FieldPath identifies a field either by bare id (implicit current grid) or
// by explicit "gridId.fieldId" form.
type FieldPath struct {
	Grid  string
	Field string
}

// ParseFieldPath splits a path on its first dot. A path without a dot is a
// bare field id.
func ParseFieldPath(path string) FieldPath {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return FieldPath{Grid: path[:i], Field: path[i+1:]}
	}
	return FieldPath{Field: path}
}

// String renders the path back to its serialized form.
func (p FieldPath) String() string {
	if p.Grid == "" {
		return p.Field
	}
	return p.Grid + "." + p.Field
}

// Qualified returns the explicit "gridId.fieldId" form, filling in
// defaultGrid when the path has no grid of its own.
func (p FieldPath) Qualified(defaultGrid string) string {
	if p.Grid == "" {
		return defaultGrid + "." + p.Field
	}
	return p.String()
}

// InGrid reports whether the path resolves inside gridID, treating a bare
// field id as belonging to the current grid.
func (p FieldPath) InGrid(gridID string) bool {
	return p.Grid == "" || p.Grid == gridID
}
