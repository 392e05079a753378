//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package schema

import (
	"fmt"

	"trpc.group/trpc-go/trpc-tracker-go/expr"
)

// Issue is one structural problem found in a tracker document.
type Issue struct {
	// Path locates the offending element, e.g. "grids.sales_grid.calculations.total".
	Path string `json:"path"`
	// Message is the human-readable description.
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Path + ": " + i.Message
}

// Validate checks a tracker document for structural authoring errors. It
// returns every issue found rather than stopping at the first, so the
// authoring UI can surface them all at once. A document with issues must not
// be handed to the evaluation engines.
func Validate(t *Tracker) []Issue {
	var issues []Issue
	if t == nil {
		return []Issue{{Path: "tracker", Message: "tracker document is empty"}}
	}

	gridIDs := make(map[string]bool)
	for _, g := range t.Grids {
		path := "grids." + g.ID
		if g.ID == "" {
			issues = append(issues, Issue{Path: "grids", Message: "grid id must not be empty"})
			continue
		}
		if gridIDs[g.ID] {
			issues = append(issues, Issue{Path: path, Message: "duplicate grid id"})
			continue
		}
		gridIDs[g.ID] = true
		issues = append(issues, validateGrid(g)...)
	}

	sectionIDs := make(map[string]bool)
	for _, s := range t.Sections {
		if sectionIDs[s.ID] {
			issues = append(issues, Issue{Path: "sections." + s.ID, Message: "duplicate section id"})
		}
		sectionIDs[s.ID] = true
	}
	for _, n := range t.LayoutNodes {
		path := "layoutNodes." + n.ID
		if n.SectionID != "" && !sectionIDs[n.SectionID] {
			issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("unknown section %q", n.SectionID)})
		}
		if n.GridID != "" && !gridIDs[n.GridID] {
			issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("unknown grid %q", n.GridID)})
		}
	}
	return issues
}

func validateGrid(g *Grid) []Issue {
	var issues []Issue
	path := "grids." + g.ID

	fieldIDs := make(map[string]bool)
	for _, f := range g.Fields {
		if f.ID == "" {
			issues = append(issues, Issue{Path: path + ".fields", Message: "field id must not be empty"})
			continue
		}
		if fieldIDs[f.ID] {
			issues = append(issues, Issue{Path: path + ".fields." + f.ID, Message: "duplicate field id"})
			continue
		}
		fieldIDs[f.ID] = true
	}

	for target, c := range g.Calculations {
		cPath := path + ".calculations." + target
		targetField := ParseFieldPath(target)
		if !targetField.InGrid(g.ID) {
			issues = append(issues, Issue{Path: cPath, Message: "calculation target must stay within target grid"})
			continue
		}
		if !fieldIDs[targetField.Field] {
			issues = append(issues, Issue{Path: cPath, Message: fmt.Sprintf("unknown target field %q", targetField.Field)})
			continue
		}
		if c == nil || c.Expr == nil {
			issues = append(issues, Issue{Path: cPath, Message: "calculation has no expression"})
			continue
		}
		// Calculations may only read fields of their own grid. The engine
		// silently drops foreign references, so this pass is the only place
		// where the author hears about the mistake.
		for _, ref := range expr.FieldRefs(c.Expr) {
			if refPath := ParseFieldPath(ref); !refPath.InGrid(g.ID) {
				issues = append(issues, Issue{
					Path:    cPath,
					Message: fmt.Sprintf("calculation references %q: references must stay within target grid", ref),
				})
			}
		}
	}
	return issues
}
