//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package options

import "fmt"

// Issue codes produced by the graph compiler.
const (
	IssueMissingEntry     = "missing_entry"
	IssueMissingReturn    = "missing_return"
	IssueDanglingEdge     = "dangling_edge"
	IssueUnknownKind      = "unknown_kind"
	IssueBadReturnKind    = "bad_return_kind"
	IssueNoOutgoing       = "no_outgoing"
	IssueNotReachable     = "not_reachable"
	IssueMissingConfig    = "missing_config"
	IssueBadEntryKind     = "bad_entry_kind"
	IssueDuplicateNodeIDs = "duplicate_node_id"
)

// Issue is one structural problem in a graph definition.
type Issue struct {
	Code    string `json:"code"`
	NodeID  string `json:"nodeId,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.NodeID != "" {
		return fmt.Sprintf("%s (%s): %s", i.Code, i.NodeID, i.Message)
	}
	return i.Code + ": " + i.Message
}

// CompileResult is the outcome of statically validating a graph definition.
type CompileResult struct {
	OK     bool    `json:"ok"`
	Issues []Issue `json:"issues,omitempty"`
}

// CompileGraph statically validates a graph_v1 definition without executing
// it: node ids are unique, every edge connects existing nodes, the entry node
// starts the graph and has at least one outgoing edge, the return node is an
// output.options node, every node kind is known and carries its required
// config, and the return node is reachable from the entry node. The
// reachability check matters most: without it an unreachable return node
// would execute to an empty result with no diagnostic at all.
func CompileGraph(def *Definition) CompileResult {
	var issues []Issue

	nodes := make(map[string]*GraphNode, len(def.Nodes))
	for _, n := range def.Nodes {
		if _, dup := nodes[n.ID]; dup {
			issues = append(issues, Issue{Code: IssueDuplicateNodeIDs, NodeID: n.ID,
				Message: fmt.Sprintf("node id %q used more than once", n.ID)})
			continue
		}
		nodes[n.ID] = n
		if !knownNodeKind(n.Kind) {
			issues = append(issues, Issue{Code: IssueUnknownKind, NodeID: n.ID,
				Message: fmt.Sprintf("unknown node kind %q", n.Kind)})
			continue
		}
		issues = append(issues, checkNodeConfig(n)...)
	}

	entry, ok := nodes[def.EntryNodeID]
	if !ok {
		issues = append(issues, Issue{Code: IssueMissingEntry,
			Message: fmt.Sprintf("entry node %q does not exist", def.EntryNodeID)})
	} else if entry.Kind != NodeControlStart {
		issues = append(issues, Issue{Code: IssueBadEntryKind, NodeID: entry.ID,
			Message: fmt.Sprintf("entry node must be kind %q, got %q", NodeControlStart, entry.Kind)})
	}
	ret, ok := nodes[def.ReturnNodeID]
	if !ok {
		issues = append(issues, Issue{Code: IssueMissingReturn,
			Message: fmt.Sprintf("return node %q does not exist", def.ReturnNodeID)})
	} else if ret.Kind != NodeOutputOptions {
		issues = append(issues, Issue{Code: IssueBadReturnKind, NodeID: ret.ID,
			Message: fmt.Sprintf("return node must be kind %q, got %q", NodeOutputOptions, ret.Kind)})
	}

	forward := make(map[string][]string, len(nodes))
	for _, e := range def.Edges {
		if _, ok := nodes[e.Source]; !ok {
			issues = append(issues, Issue{Code: IssueDanglingEdge,
				Message: fmt.Sprintf("edge source %q does not exist", e.Source)})
			continue
		}
		if _, ok := nodes[e.Target]; !ok {
			issues = append(issues, Issue{Code: IssueDanglingEdge,
				Message: fmt.Sprintf("edge target %q does not exist", e.Target)})
			continue
		}
		forward[e.Source] = append(forward[e.Source], e.Target)
	}

	if entry != nil {
		if len(forward[entry.ID]) == 0 {
			issues = append(issues, Issue{Code: IssueNoOutgoing, NodeID: entry.ID,
				Message: "entry node has no outgoing edge"})
		}
		if ret != nil && !reachable(forward, entry.ID, ret.ID) {
			issues = append(issues, Issue{Code: IssueNotReachable, NodeID: ret.ID,
				Message: fmt.Sprintf("return node %q is not reachable from entry node %q", ret.ID, entry.ID)})
		}
	}

	return CompileResult{OK: len(issues) == 0, Issues: issues}
}

// reachable performs a forward breadth-first search from start to goal.
func reachable(forward map[string][]string, start, goal string) bool {
	if start == goal {
		return true
	}
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range forward[id] {
			if next == goal {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func knownNodeKind(kind string) bool {
	switch kind {
	case NodeControlStart, NodeSourceGridRows, NodeSourceHTTPGet,
		NodeTransformUnique, NodeTransformSort, NodeTransformFilter,
		NodeAIExtractOptions, NodeOutputOptions:
		return true
	default:
		return false
	}
}

// checkNodeConfig verifies that a node carries the config fields its kind
// requires.
func checkNodeConfig(n *GraphNode) []Issue {
	missing := func(field string) Issue {
		return Issue{Code: IssueMissingConfig, NodeID: n.ID,
			Message: fmt.Sprintf("%s node requires config field %q", n.Kind, field)}
	}
	var issues []Issue
	switch n.Kind {
	case NodeSourceGridRows:
		if n.Config.GridID == "" {
			issues = append(issues, missing("gridId"))
		}
	case NodeSourceHTTPGet:
		if n.Config.ConnectorID == "" {
			issues = append(issues, missing("connectorId"))
		}
		if n.Config.Path == "" {
			issues = append(issues, missing("path"))
		}
	case NodeTransformUnique, NodeTransformSort, NodeTransformFilter:
		if n.Config.Key == "" {
			issues = append(issues, missing("key"))
		}
	case NodeOutputOptions:
		if n.Config.LabelKey == "" {
			issues = append(issues, missing("labelKey"))
		}
		if n.Config.ValueKey == "" {
			issues = append(issues, missing("valueKey"))
		}
	}
	return issues
}
