//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

// Package calc compiles a grid's calculation rules into a dependency graph
// and applies that graph incrementally to rows.
//
// Compilation extracts every field reference from each target's expression
// and records two adjacency maps: target-to-target dependency edges (used for
// evaluation ordering) and field-to-dependent-target reverse edges (used to
// find the targets affected by an edit). Edges never cross grid boundaries; a
// reference to another grid is silently not a dependency, and the schema
// validation pass reports it to the author.
//
// Application computes the impact set of the changed fields, orders the
// impacted targets so dependencies evaluate before dependents, contains any
// circular definitions by excluding them from the order, and writes back only
// values that actually changed.
package calc

import (
	"sort"

	"trpc.group/trpc-go/trpc-tracker-go/expr"
	"trpc.group/trpc-go/trpc-tracker-go/internal/plancache"
	"trpc.group/trpc-go/trpc-tracker-go/schema"
)

// Plan is a compiled, immutable calculation plan for one grid.
type Plan struct {
	gridID        string
	rulesByTarget map[string]*schema.Calculation
	// dependsOnTargets holds target-to-target edges: the set of calculation
	// targets each target reads.
	dependsOnTargets map[string]map[string]bool
	// reverseDeps holds edges from any referenced field (target or not) to
	// the targets that read it.
	reverseDeps map[string]map[string]bool
	// targets is the sorted target list, for deterministic traversal.
	targets []string
}

// GridID returns the grid the plan was compiled for.
func (p *Plan) GridID() string {
	return p.gridID
}

// Targets returns the sorted list of calculation target field ids.
func (p *Plan) Targets() []string {
	return p.targets
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	cacheSize int
	poolSize  int
}

// WithCacheSize bounds the compiled-plan cache.
func WithCacheSize(n int) Option {
	return func(c *config) {
		c.cacheSize = n
	}
}

// WithPoolSize sets the goroutine pool size used by BatchApply.
func WithPoolSize(n int) Option {
	return func(c *config) {
		c.poolSize = n
	}
}

// Engine compiles and caches calculation plans. The cache is keyed by a
// structural signature of the rule set, so repeated compiles of an identical
// rule set are free, and it is bounded with a clear-on-overflow policy so
// long-lived processes hosting many trackers cannot grow it without limit.
type Engine struct {
	cache    *plancache.Cache
	poolSize int
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Engine{
		cache:    plancache.New(cfg.cacheSize),
		poolSize: cfg.poolSize,
	}
}

// Compile builds (or fetches from cache) the plan for gridID's calculation
// rules. Rule targets and field references outside gridID are discarded.
func (e *Engine) Compile(gridID string, calcs map[string]*schema.Calculation) *Plan {
	key := plancache.Signature(gridID, calcs)
	if cached, ok := e.cache.Get(key); ok {
		return cached.(*Plan)
	}
	plan := compile(gridID, calcs)
	e.cache.Put(key, plan)
	return plan
}

func compile(gridID string, calcs map[string]*schema.Calculation) *Plan {
	plan := &Plan{
		gridID:           gridID,
		rulesByTarget:    make(map[string]*schema.Calculation, len(calcs)),
		dependsOnTargets: make(map[string]map[string]bool),
		reverseDeps:      make(map[string]map[string]bool),
	}
	for target, rule := range calcs {
		if rule == nil || rule.Expr == nil {
			continue
		}
		path := schema.ParseFieldPath(target)
		if !path.InGrid(gridID) {
			continue
		}
		plan.rulesByTarget[path.Field] = rule
		plan.targets = append(plan.targets, path.Field)
	}
	sort.Strings(plan.targets)

	// Second pass: edges need the full target set to tell targets apart from
	// plain input fields.
	for _, target := range plan.targets {
		for _, ref := range expr.FieldRefs(plan.rulesByTarget[target].Expr) {
			refPath := schema.ParseFieldPath(ref)
			if !refPath.InGrid(gridID) {
				continue
			}
			field := refPath.Field
			if plan.reverseDeps[field] == nil {
				plan.reverseDeps[field] = make(map[string]bool)
			}
			plan.reverseDeps[field][target] = true
			if _, isTarget := plan.rulesByTarget[field]; isTarget {
				if plan.dependsOnTargets[target] == nil {
					plan.dependsOnTargets[target] = make(map[string]bool)
				}
				plan.dependsOnTargets[target][field] = true
			}
		}
	}
	return plan
}

// impactSet returns the targets transitively affected by the changed fields,
// via breadth-first traversal of the reverse dependency edges. A nil or
// empty changed list means every target is impacted (full recompute).
func (p *Plan) impactSet(changedFieldIDs []string) map[string]bool {
	impacted := make(map[string]bool, len(p.targets))
	if len(changedFieldIDs) == 0 {
		for _, t := range p.targets {
			impacted[t] = true
		}
		return impacted
	}
	queue := make([]string, 0, len(changedFieldIDs))
	for _, f := range changedFieldIDs {
		path := schema.ParseFieldPath(f)
		if !path.InGrid(p.gridID) {
			continue
		}
		queue = append(queue, path.Field)
	}
	visited := make(map[string]bool, len(queue))
	for len(queue) > 0 {
		field := queue[0]
		queue = queue[1:]
		if visited[field] {
			continue
		}
		visited[field] = true
		for dependent := range p.reverseDeps[field] {
			if !impacted[dependent] {
				impacted[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}
	return impacted
}

// evaluationOrder topologically orders the impacted targets over the
// target-to-target edges. A back-edge to a node still on the traversal stack
// marks every node on the stack from that point on as cyclic; cyclic targets
// are excluded from the order and returned separately. Targets downstream of
// a cycle stay in the order and compute with whatever value the cyclic field
// currently holds.
func (p *Plan) evaluationOrder(impacted map[string]bool) (order, cyclic []string) {
	const (
		stateOnStack = 1
		stateDone    = 2
	)
	state := make(map[string]int, len(impacted))
	isCyclic := make(map[string]bool)
	var stack []string

	var visit func(target string)
	visit = func(target string) {
		switch state[target] {
		case stateDone:
			return
		case stateOnStack:
			for i := len(stack) - 1; i >= 0; i-- {
				isCyclic[stack[i]] = true
				if stack[i] == target {
					break
				}
			}
			return
		}
		state[target] = stateOnStack
		stack = append(stack, target)
		deps := sortedKeys(p.dependsOnTargets[target])
		for _, dep := range deps {
			if impacted[dep] {
				visit(dep)
			}
		}
		stack = stack[:len(stack)-1]
		state[target] = stateDone
		if !isCyclic[target] {
			order = append(order, target)
		}
	}

	for _, target := range p.targets {
		if impacted[target] {
			visit(target)
		}
	}
	cyclic = sortedKeys(isCyclic)
	return order, cyclic
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
