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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"trpc.group/trpc-go/trpc-tracker-go/log"
	"trpc.group/trpc-go/trpc-tracker-go/telemetry"
)

// Resolution sources.
const (
	SourceBuiltin     = "builtin"
	SourceLocalCustom = "local_custom"
	SourceRemote      = "remote"
)

// Builtin function ids answered without consulting the custom definitions.
const (
	BuiltinComparisonOperators = "comparison_operators"
	BuiltinRuleActions         = "rule_actions"
	BuiltinFieldPaths          = "field_paths"
)

// Meta describes how a resolution was answered.
type Meta struct {
	Source string `json:"source"`
}

// Resolution is the result of resolving an options function.
type Resolution struct {
	Options  []Item   `json:"options"`
	Meta     Meta     `json:"meta"`
	Warnings []string `json:"warnings,omitempty"`
}

// ResolveRequest identifies the function to resolve and the capabilities of
// the calling context.
type ResolveRequest struct {
	// TrackerID scopes cached results. A resolver serving several trackers
	// must set it, or same-id functions of different trackers would share
	// cache entries.
	TrackerID    string
	FunctionID   string
	Context      *Context
	AllowHTTPGet bool
	Fetcher      Fetcher
	Secrets      SecretResolver
}

// Resolver answers option-function lookups: builtins first, then
// tracker-local custom definitions executed through the engine. Results of
// definitions that ask for caching are reused until their TTL passes, scoped
// by the requesting tracker.
type Resolver struct {
	engine *Engine

	mu     sync.Mutex
	cached map[string]cachedResolution
}

type cachedResolution struct {
	resolution Resolution
	expires    time.Time
}

// NewResolver creates a Resolver on top of engine.
func NewResolver(engine *Engine) *Resolver {
	return &Resolver{
		engine: engine,
		cached: make(map[string]cachedResolution),
	}
}

// Resolve answers one options-function lookup. Precedence: builtin table,
// then tracker-local custom definitions; a definition needing network access
// the caller cannot provide resolves to empty options with a warning rather
// than partial data.
func (r *Resolver) Resolve(ctx context.Context, req *ResolveRequest) Resolution {
	start := time.Now()
	resolution := r.resolve(ctx, req)
	elapsed := time.Since(start).Seconds()

	attrs := metric.WithAttributes(attribute.String("source", resolution.Meta.Source))
	telemetry.OptionResolutions.Add(ctx, 1, attrs)
	telemetry.OptionResolveDuration.Record(ctx, elapsed, attrs)
	return resolution
}

func (r *Resolver) resolve(ctx context.Context, req *ResolveRequest) Resolution {
	if items, ok := builtinOptions(req); ok {
		return Resolution{Options: items, Meta: Meta{Source: SourceBuiltin}}
	}

	var def *Definition
	if req.Context != nil {
		def = req.Context.Functions[req.FunctionID]
	}
	if def == nil {
		return Resolution{
			Meta:     Meta{Source: SourceLocalCustom},
			Warnings: []string{"unknown options function " + req.FunctionID},
		}
	}

	key := cacheKey(req)
	if cached, ok := r.lookupCached(key); ok {
		return cached
	}

	executionID := uuid.NewString()
	log.DebugfContext(ctx, "options: executing function %s (execution %s)", def.ID, executionID)

	result := r.engine.Execute(ctx, &ExecuteRequest{
		Definition:   def,
		Context:      req.Context,
		AllowHTTPGet: req.AllowHTTPGet,
		Fetcher:      req.Fetcher,
		Secrets:      req.Secrets,
	})
	resolution := Resolution{
		Options:  result.Options,
		Meta:     Meta{Source: SourceLocalCustom},
		Warnings: result.Warnings,
	}
	if result.RequiresRemote {
		resolution.Meta.Source = SourceRemote
		return resolution
	}
	r.storeCached(key, def, resolution)
	return resolution
}

// cacheKey scopes cached results to one tracker's function. The separator
// cannot appear in either id, so distinct pairs never collide.
func cacheKey(req *ResolveRequest) string {
	return req.TrackerID + "\x00" + req.FunctionID
}

func (r *Resolver) lookupCached(key string) (Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cached[key]
	if !ok || time.Now().After(entry.expires) {
		delete(r.cached, key)
		return Resolution{}, false
	}
	return entry.resolution, true
}

func (r *Resolver) storeCached(key string, def *Definition, resolution Resolution) {
	if def.Cache == nil || def.Cache.TTLSeconds <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached[key] = cachedResolution{
		resolution: resolution,
		expires:    time.Now().Add(time.Duration(def.Cache.TTLSeconds) * time.Second),
	}
}

// builtinOptions answers the fixed builtin functions. These never touch the
// custom definitions at all.
func builtinOptions(req *ResolveRequest) ([]Item, bool) {
	switch req.FunctionID {
	case BuiltinComparisonOperators:
		return []Item{
			{Label: "equals", Value: "eq"},
			{Label: "not equals", Value: "neq"},
			{Label: "greater than", Value: "gt"},
			{Label: "greater or equal", Value: "gte"},
			{Label: "less than", Value: "lt"},
			{Label: "less or equal", Value: "lte"},
		}, true
	case BuiltinRuleActions:
		return []Item{
			{Label: "Show field", Value: "show"},
			{Label: "Hide field", Value: "hide"},
			{Label: "Require field", Value: "require"},
			{Label: "Make read-only", Value: "readonly"},
		}, true
	case BuiltinFieldPaths:
		if req.Context == nil || req.Context.Tracker == nil {
			return nil, true
		}
		var items []Item
		for _, grid := range req.Context.Tracker.Grids {
			for _, field := range grid.Fields {
				path := grid.ID + "." + field.ID
				label := field.Label
				if label == "" {
					label = field.ID
				}
				items = append(items, Item{Label: grid.Name + " / " + label, Value: path, ID: path})
			}
		}
		return items, true
	default:
		return nil, false
	}
}
