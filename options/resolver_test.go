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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-tracker-go/schema"
)

func TestResolveBuiltins(t *testing.T) {
	r := NewResolver(NewEngine())

	res := r.Resolve(context.Background(), &ResolveRequest{FunctionID: BuiltinComparisonOperators})
	assert.Equal(t, SourceBuiltin, res.Meta.Source)
	require.NotEmpty(t, res.Options)
	assert.Equal(t, "eq", res.Options[0].Value)

	res = r.Resolve(context.Background(), &ResolveRequest{FunctionID: BuiltinRuleActions})
	assert.Equal(t, SourceBuiltin, res.Meta.Source)
	assert.Len(t, res.Options, 4)
}

func TestResolveBuiltinFieldPaths(t *testing.T) {
	tracker := &schema.Tracker{
		ID: "crm",
		Grids: []*schema.Grid{
			{ID: "deals", Name: "Deals", Fields: []*schema.Field{
				{ID: "amount", Label: "Amount", Type: schema.FieldTypeNumber},
				{ID: "stage", Type: schema.FieldTypeText},
			}},
		},
	}
	r := NewResolver(NewEngine())
	res := r.Resolve(context.Background(), &ResolveRequest{
		FunctionID: BuiltinFieldPaths,
		Context:    &Context{Tracker: tracker},
	})

	assert.Equal(t, SourceBuiltin, res.Meta.Source)
	require.Len(t, res.Options, 2)
	assert.Equal(t, "deals.amount", res.Options[0].Value)
	assert.Equal(t, "Deals / Amount", res.Options[0].Label)
	// A field without a label falls back to its id.
	assert.Equal(t, "Deals / stage", res.Options[1].Label)
}

func TestResolveBuiltinShadowsCustom(t *testing.T) {
	// A custom definition reusing a builtin id never runs.
	custom := &Definition{
		ID:     BuiltinRuleActions,
		Source: &Source{Type: SourceGridRows, GridID: "missing"},
		Output: &Output{Label: "x", Value: "x"},
	}
	r := NewResolver(NewEngine())
	res := r.Resolve(context.Background(), &ResolveRequest{
		FunctionID: BuiltinRuleActions,
		Context:    &Context{Functions: map[string]*Definition{custom.ID: custom}},
	})
	assert.Equal(t, SourceBuiltin, res.Meta.Source)
	assert.Empty(t, res.Warnings)
}

func TestResolveUnknownFunction(t *testing.T) {
	r := NewResolver(NewEngine())
	res := r.Resolve(context.Background(), &ResolveRequest{
		FunctionID: "no_such_function",
		Context:    &Context{},
	})
	assert.Empty(t, res.Options)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "unknown options function")
}

func TestResolveLocalCustom(t *testing.T) {
	def := &Definition{
		ID:     "statuses",
		Source: &Source{Type: SourceGridRows, GridID: "statuses"},
		Output: &Output{Label: "name", Value: "id"},
	}
	execCtx := &Context{
		Functions: map[string]*Definition{"statuses": def},
		GridData: schema.GridData{
			"statuses": []schema.Row{{"id": "open", "name": "Open"}},
		},
	}
	r := NewResolver(NewEngine())
	res := r.Resolve(context.Background(), &ResolveRequest{FunctionID: "statuses", Context: execCtx})

	assert.Equal(t, SourceLocalCustom, res.Meta.Source)
	require.Len(t, res.Options, 1)
	assert.Equal(t, "open", res.Options[0].Value)
}

func TestResolveRemoteDeferralNotCached(t *testing.T) {
	def := &Definition{
		ID:     "rates",
		Cache:  &CacheSpec{TTLSeconds: 300},
		Source: &Source{Type: SourceHTTPGet, ConnectorID: "fx", Path: "/rates"},
		Output: &Output{Label: "code", Value: "code"},
	}
	execCtx := &Context{Functions: map[string]*Definition{"rates": def}}
	r := NewResolver(NewEngine())

	res := r.Resolve(context.Background(), &ResolveRequest{FunctionID: "rates", Context: execCtx})
	assert.Equal(t, SourceRemote, res.Meta.Source)
	assert.Empty(t, res.Options)

	// Deferrals are never cached; the next call still reports remote.
	res = r.Resolve(context.Background(), &ResolveRequest{FunctionID: "rates", Context: execCtx})
	assert.Equal(t, SourceRemote, res.Meta.Source)
}

func TestResolveCacheScopedByTracker(t *testing.T) {
	contextFor := func(status string) *Context {
		return &Context{
			Functions: map[string]*Definition{
				"statuses": {
					ID:     "statuses",
					Cache:  &CacheSpec{TTLSeconds: 300},
					Source: &Source{Type: SourceGridRows, GridID: "statuses"},
					Output: &Output{Label: "name", Value: "id"},
				},
			},
			GridData: schema.GridData{
				"statuses": []schema.Row{{"id": status, "name": status}},
			},
		}
	}

	// One resolver serves both trackers; a cached result for tracker A must
	// never answer tracker B's same-id function.
	r := NewResolver(NewEngine())
	first := r.Resolve(context.Background(), &ResolveRequest{
		TrackerID: "tracker_a", FunctionID: "statuses", Context: contextFor("open"),
	})
	require.Len(t, first.Options, 1)
	assert.Equal(t, "open", first.Options[0].Value)

	second := r.Resolve(context.Background(), &ResolveRequest{
		TrackerID: "tracker_b", FunctionID: "statuses", Context: contextFor("todo"),
	})
	require.Len(t, second.Options, 1)
	assert.Equal(t, "todo", second.Options[0].Value)

	// Within one tracker the TTL cache still applies.
	again := r.Resolve(context.Background(), &ResolveRequest{
		TrackerID: "tracker_a", FunctionID: "statuses", Context: contextFor("changed"),
	})
	require.Len(t, again.Options, 1)
	assert.Equal(t, "open", again.Options[0].Value)
}

func TestResolveCachesByTTL(t *testing.T) {
	def := &Definition{
		ID:     "statuses",
		Cache:  &CacheSpec{TTLSeconds: 300},
		Source: &Source{Type: SourceGridRows, GridID: "statuses"},
		Output: &Output{Label: "name", Value: "id"},
	}
	execCtx := &Context{
		Functions: map[string]*Definition{"statuses": def},
		GridData: schema.GridData{
			"statuses": []schema.Row{{"id": "open", "name": "Open"}},
		},
	}
	r := NewResolver(NewEngine())
	first := r.Resolve(context.Background(), &ResolveRequest{FunctionID: "statuses", Context: execCtx})
	require.Len(t, first.Options, 1)

	// Mutating the grid does not change a cached resolution until the TTL
	// expires.
	execCtx.GridData["statuses"] = append(execCtx.GridData["statuses"],
		schema.Row{"id": "done", "name": "Done"})
	second := r.Resolve(context.Background(), &ResolveRequest{FunctionID: "statuses", Context: execCtx})
	assert.Len(t, second.Options, 1)

	// Definitions without a cache spec re-execute every time.
	def.Cache = nil
	r = NewResolver(NewEngine())
	third := r.Resolve(context.Background(), &ResolveRequest{FunctionID: "statuses", Context: execCtx})
	assert.Len(t, third.Options, 2)
	execCtx.GridData["statuses"] = execCtx.GridData["statuses"][:1]
	fourth := r.Resolve(context.Background(), &ResolveRequest{FunctionID: "statuses", Context: execCtx})
	assert.Len(t, fourth.Options, 1)
}
