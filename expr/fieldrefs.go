//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package expr

// FieldRefs returns every field path referenced anywhere in the tree, in
// first-seen order with duplicates removed. The calculation engine uses this
// to derive dependency edges; schema validation uses it to reject references
// that leave the target grid.
func FieldRefs(node *Node) []string {
	var refs []string
	seen := make(map[string]bool)
	collectFieldRefs(node, seen, &refs)
	return refs
}

func collectFieldRefs(node *Node, seen map[string]bool, refs *[]string) {
	if node == nil {
		return
	}
	if node.Op == OpField && node.Field != "" && !seen[node.Field] {
		seen[node.Field] = true
		*refs = append(*refs, node.Field)
	}
	for _, arg := range node.Args {
		collectFieldRefs(arg, seen, refs)
	}
	collectFieldRefs(node.Left, seen, refs)
	collectFieldRefs(node.Right, seen, refs)
	collectFieldRefs(node.Cond, seen, refs)
	collectFieldRefs(node.Then, seen, refs)
	collectFieldRefs(node.Else, seen, refs)
}
