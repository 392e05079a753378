//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

// Package options resolves the selectable values of a field from a
// declarative pipeline definition.
//
// A definition comes in two mutually exclusive shapes: a flat
// source → transforms → output pipeline, or an explicit node/edge graph
// (engine "graph_v1") that is statically compiled before execution. Rows are
// pulled from the tracker's own grids or from an external HTTP source through
// a sandboxed connector, then transformed and projected to option items.
package options

// Engine tags.
const (
	// EngineGraphV1 marks a definition carrying the node/edge graph shape.
	EngineGraphV1 = "graph_v1"
)

// Source types.
const (
	SourceGridRows = "grid_rows"
	SourceHTTPGet  = "http_get"
)

// Transform types.
const (
	TransformUnique = "unique"
	TransformSort   = "sort"
	TransformFilter = "filter"
)

// Graph node kinds.
const (
	NodeControlStart     = "control.start"
	NodeSourceGridRows   = "source.grid_rows"
	NodeSourceHTTPGet    = "source.http_get"
	NodeTransformUnique  = "transform.unique"
	NodeTransformSort    = "transform.sort"
	NodeTransformFilter  = "transform.filter"
	NodeAIExtractOptions = "ai.extract_options"
	NodeOutputOptions    = "output.options"
)

// Sort directions and value types.
const (
	DirectionAsc    = "asc"
	DirectionDesc   = "desc"
	ValueTypeNumber = "number"
	ValueTypeString = "string"
)

// Definition is one dynamic-options function.
type Definition struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version int    `json:"version,omitempty"`
	// Engine selects the definition shape; empty means flat pipeline.
	Engine  string `json:"engine,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	// Cache asks the resolver to reuse a result for a while.
	Cache *CacheSpec `json:"cache,omitempty"`

	// Flat pipeline shape.
	Source     *Source      `json:"source,omitempty"`
	Transforms []*Transform `json:"transforms,omitempty"`
	Output     *Output      `json:"output,omitempty"`

	// Graph shape (engine "graph_v1").
	EntryNodeID  string       `json:"entryNodeId,omitempty"`
	ReturnNodeID string       `json:"returnNodeId,omitempty"`
	Nodes        []*GraphNode `json:"nodes,omitempty"`
	Edges        []*GraphEdge `json:"edges,omitempty"`
}

// IsEnabled reports whether the definition may execute; the flag defaults to
// enabled when absent.
func (d *Definition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// CacheSpec controls result reuse.
type CacheSpec struct {
	TTLSeconds int `json:"ttlSeconds"`
}

// Source describes where a flat pipeline pulls its rows from.
type Source struct {
	Type string `json:"type"`
	// GridID names the tracker grid for grid_rows sources.
	GridID string `json:"gridId,omitempty"`
	// ConnectorID, Path and ResponsePath configure http_get sources.
	ConnectorID  string `json:"connectorId,omitempty"`
	Path         string `json:"path,omitempty"`
	ResponsePath string `json:"responsePath,omitempty"`
}

// Transform is one step of the row pipeline.
type Transform struct {
	Type string `json:"type"`
	// Key selects the row field the transform works on.
	Key string `json:"key,omitempty"`
	// Direction and ValueType configure sort.
	Direction string `json:"direction,omitempty"`
	ValueType string `json:"valueType,omitempty"`
	// Op and Value configure filter.
	Op    string `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Output maps surviving rows to option items by row key.
type Output struct {
	Label string `json:"label"`
	Value string `json:"value"`
	ID    string `json:"id,omitempty"`
}

// GraphNode is one node of a graph_v1 definition.
type GraphNode struct {
	ID     string     `json:"id"`
	Kind   string     `json:"kind"`
	Config NodeConfig `json:"config,omitempty"`
}

// NodeConfig carries the per-kind configuration of a graph node. Which
// fields are meaningful depends on the node kind; the compiler checks that a
// kind's required fields are present.
type NodeConfig struct {
	// source.grid_rows
	GridID string `json:"gridId,omitempty"`
	// source.http_get
	ConnectorID  string `json:"connectorId,omitempty"`
	Path         string `json:"path,omitempty"`
	ResponsePath string `json:"responsePath,omitempty"`
	// transform.*
	Key       string `json:"key,omitempty"`
	Direction string `json:"direction,omitempty"`
	ValueType string `json:"valueType,omitempty"`
	Op        string `json:"op,omitempty"`
	Value     any    `json:"value,omitempty"`
	// output.options
	LabelKey string `json:"labelKey,omitempty"`
	ValueKey string `json:"valueKey,omitempty"`
	IDKey    string `json:"idKey,omitempty"`
}

// GraphEdge connects two graph nodes by id.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Connector is a named, reusable description of how to reach an external
// HTTP API.
type Connector struct {
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	BaseURL string `json:"baseUrl"`
	Auth    Auth   `json:"auth"`
	// AllowHosts restricts which hosts requests may target. Absent means no
	// restriction.
	AllowHosts []string `json:"allowHosts,omitempty"`
}

// Auth types.
const (
	AuthNone      = "none"
	AuthSecretRef = "secret_ref"
)

// Auth describes connector authentication.
type Auth struct {
	Type        string `json:"type"`
	SecretRefID string `json:"secretRefId,omitempty"`
}

// Item is one selectable option.
type Item struct {
	Label string `json:"label"`
	Value any    `json:"value"`
	ID    string `json:"id,omitempty"`
}
