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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"trpc.group/trpc-go/trpc-tracker-go/log"
	"trpc.group/trpc-go/trpc-tracker-go/schema"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	// maxResponseBytes bounds how much of a connector response is read.
	maxResponseBytes = 4 << 20
)

// Fetcher performs an HTTP request. *http.Client satisfies it; tests and
// callers wanting cancellation or retry policy inject their own.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// SecretResolver resolves a secret reference to its value. The engine uses
// the value for a single request's Authorization header and never stores or
// logs it.
type SecretResolver func(ctx context.Context, secretRefID string) (string, error)

// Extractor is the seam for the AI collaborator behind ai.extract_options
// nodes. When absent, those nodes pass rows through unchanged.
type Extractor interface {
	ExtractOptions(ctx context.Context, rows []map[string]any) ([]map[string]any, error)
}

// Context supplies the tracker-side inputs of an execution: live grid data,
// the tracker document, the custom function definitions and the connectors
// they reference.
type Context struct {
	Tracker    *schema.Tracker
	GridData   schema.GridData
	Functions  map[string]*Definition
	Connectors map[string]*Connector
}

// ExecuteRequest describes one execution of a definition.
type ExecuteRequest struct {
	Definition *Definition
	Context    *Context
	// AllowHTTPGet permits outbound requests. In a client context it stays
	// false and http_get sources defer to a trusted server instead of
	// attempting the call.
	AllowHTTPGet bool
	// Fetcher overrides the engine's HTTP client for this execution.
	Fetcher Fetcher
	// Secrets resolves secret_ref connector auth. A nil resolver (or one
	// returning nothing) means the request goes out without an auth header.
	Secrets SecretResolver
}

// ExecResult is the outcome of executing a definition.
type ExecResult struct {
	Options []Item `json:"options"`
	// RequiresRemote is set when the definition needs network access the
	// caller cannot provide.
	RequiresRemote bool     `json:"requiresRemote,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	client    Fetcher
	extractor Extractor
}

// WithHTTPClient sets the HTTP client used when a request has no Fetcher.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *engineConfig) {
		cfg.client = c
	}
}

// WithExtractor installs the AI extractor behind ai.extract_options nodes.
func WithExtractor(e Extractor) Option {
	return func(cfg *engineConfig) {
		cfg.extractor = e
	}
}

// Engine interprets dynamic-options definitions. It is stateless apart from
// its HTTP client and safe for concurrent use.
type Engine struct {
	client    Fetcher
	extractor Extractor
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	cfg := &engineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.client == nil {
		cfg.client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Engine{client: cfg.client, extractor: cfg.extractor}
}

// Execute runs a definition against the request context. It never returns an
// error: every failure collapses to an empty option list plus a warning, so
// one broken definition cannot take down the rest of the grid.
func (e *Engine) Execute(ctx context.Context, req *ExecuteRequest) ExecResult {
	def := req.Definition
	if def == nil {
		return warnResult("no definition to execute")
	}
	if !def.IsEnabled() {
		return warnResult(fmt.Sprintf("options function %q is disabled", def.ID))
	}
	if def.Engine == EngineGraphV1 {
		return e.executeGraph(ctx, req)
	}
	return e.executeFlat(ctx, req)
}

// executeFlat runs the source → transforms → output pipeline shape.
func (e *Engine) executeFlat(ctx context.Context, req *ExecuteRequest) ExecResult {
	def := req.Definition
	if def.Source == nil {
		return warnResult(fmt.Sprintf("options function %q has no source", def.ID))
	}
	if def.Output == nil {
		return warnResult(fmt.Sprintf("options function %q has no output mapping", def.ID))
	}

	rows, res, done := e.loadSource(ctx, req, def.Source)
	if done {
		return res
	}

	var warnings []string
	for _, t := range def.Transforms {
		var warning string
		rows, warning = applyTransform(t, rows)
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}
	return ExecResult{Options: mapOutput(rows, def.Output), Warnings: warnings}
}

// executeGraph compiles the graph shape, then walks the single path from the
// entry node to the return node, feeding each node's row set to the next.
func (e *Engine) executeGraph(ctx context.Context, req *ExecuteRequest) ExecResult {
	def := req.Definition
	compiled := CompileGraph(def)
	if !compiled.OK {
		warnings := make([]string, 0, len(compiled.Issues))
		for _, issue := range compiled.Issues {
			warnings = append(warnings, "graph compile: "+issue.String())
		}
		return ExecResult{Warnings: warnings}
	}

	nodes := make(map[string]*GraphNode, len(def.Nodes))
	for _, n := range def.Nodes {
		nodes[n.ID] = n
	}
	forward := make(map[string][]string, len(def.Edges))
	for _, edge := range def.Edges {
		forward[edge.Source] = append(forward[edge.Source], edge.Target)
	}

	var (
		rows     []map[string]any
		warnings []string
	)
	current := def.EntryNodeID
	visited := make(map[string]bool, len(def.Nodes))
	// The compiler guarantees a path to the return node; the hop bound only
	// guards against a malicious graph whose edges defeat the visited set.
	for hops := 0; hops <= len(def.Nodes); hops++ {
		visited[current] = true
		node := nodes[current]
		switch node.Kind {
		case NodeControlStart:
			// No work; rows stay empty until a source runs.
		case NodeSourceGridRows:
			loaded, res, done := e.loadSource(ctx, req, &Source{
				Type:   SourceGridRows,
				GridID: node.Config.GridID,
			})
			if done {
				res.Warnings = append(warnings, res.Warnings...)
				return res
			}
			rows = loaded
		case NodeSourceHTTPGet:
			loaded, res, done := e.loadSource(ctx, req, &Source{
				Type:         SourceHTTPGet,
				ConnectorID:  node.Config.ConnectorID,
				Path:         node.Config.Path,
				ResponsePath: node.Config.ResponsePath,
			})
			if done {
				res.Warnings = append(warnings, res.Warnings...)
				return res
			}
			rows = loaded
		case NodeTransformUnique, NodeTransformSort, NodeTransformFilter:
			var warning string
			rows, warning = applyTransform(&Transform{
				Type:      strings.TrimPrefix(node.Kind, "transform."),
				Key:       node.Config.Key,
				Direction: node.Config.Direction,
				ValueType: node.Config.ValueType,
				Op:        node.Config.Op,
				Value:     node.Config.Value,
			}, rows)
			if warning != "" {
				warnings = append(warnings, warning)
			}
		case NodeAIExtractOptions:
			rows = e.extractRows(ctx, node, rows, &warnings)
		case NodeOutputOptions:
			out := &Output{
				Label: node.Config.LabelKey,
				Value: node.Config.ValueKey,
				ID:    node.Config.IDKey,
			}
			return ExecResult{Options: mapOutput(rows, out), Warnings: warnings}
		}
		next, ok := nextNode(forward, visited, current, def.ReturnNodeID)
		if !ok {
			break
		}
		current = next
	}
	return ExecResult{Warnings: append(warnings, "graph execution did not reach the return node")}
}

// nextNode picks the outgoing edge that still leads to the return node,
// preferring the first declared edge when several qualify. Nodes already
// executed are never revisited, so a cyclic layout that passed reachability
// cannot trap the walk.
func nextNode(forward map[string][]string, visited map[string]bool, current, returnID string) (string, bool) {
	var fallback string
	for _, target := range forward[current] {
		if visited[target] {
			continue
		}
		if target == returnID || reachable(forward, target, returnID) {
			return target, true
		}
		if fallback == "" {
			fallback = target
		}
	}
	if fallback == "" {
		return "", false
	}
	return fallback, true
}

func (e *Engine) extractRows(ctx context.Context, node *GraphNode, rows []map[string]any, warnings *[]string) []map[string]any {
	if e.extractor == nil {
		*warnings = append(*warnings, fmt.Sprintf("node %q: no extractor configured, rows passed through", node.ID))
		return rows
	}
	extracted, err := e.extractor.ExtractOptions(ctx, rows)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("node %q: extraction failed, rows passed through", node.ID))
		return rows
	}
	return extracted
}

// loadSource materializes a source's row set. The done flag signals that
// execution must stop and return res as-is (deferral or failure).
func (e *Engine) loadSource(ctx context.Context, req *ExecuteRequest, src *Source) ([]map[string]any, ExecResult, bool) {
	switch src.Type {
	case SourceGridRows:
		rows, res, done := loadGridRows(req.Context, src.GridID)
		return rows, res, done
	case SourceHTTPGet:
		return e.loadHTTP(ctx, req, src)
	default:
		return nil, warnResult(fmt.Sprintf("unknown source type %q", src.Type)), true
	}
}

func loadGridRows(execCtx *Context, gridID string) ([]map[string]any, ExecResult, bool) {
	if execCtx == nil || execCtx.GridData == nil {
		return nil, warnResult(fmt.Sprintf("grid %q has no materialized data", gridID)), true
	}
	rows, ok := execCtx.GridData[gridID]
	if !ok {
		return nil, warnResult(fmt.Sprintf("grid %q does not exist", gridID)), true
	}
	out := make([]map[string]any, len(rows))
	copy(out, rows)
	return out, ExecResult{}, false
}

// loadHTTP performs the connector-mediated GET: capability gate, connector
// and host checks, secret resolution, one request, response-path extraction.
func (e *Engine) loadHTTP(ctx context.Context, req *ExecuteRequest, src *Source) ([]map[string]any, ExecResult, bool) {
	if !req.AllowHTTPGet {
		return nil, ExecResult{
			RequiresRemote: true,
			Warnings:       []string{fmt.Sprintf("source %q requires server execution", src.ConnectorID)},
		}, true
	}
	var connector *Connector
	if req.Context != nil {
		connector = req.Context.Connectors[src.ConnectorID]
	}
	if connector == nil {
		return nil, warnResult(fmt.Sprintf("connector %q not found", src.ConnectorID)), true
	}

	target, err := joinURL(connector.BaseURL, src.Path)
	if err != nil {
		return nil, warnResult(fmt.Sprintf("connector %q has an invalid URL: %v", connector.ID, err)), true
	}
	if !hostAllowed(connector, target) {
		return nil, warnResult(fmt.Sprintf("host %q is not allowed by connector %q", target.Hostname(), connector.ID)), true
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, warnResult(fmt.Sprintf("connector %q: building request failed: %v", connector.ID, err)), true
	}
	httpReq.Header.Set("Accept", "application/json")
	e.attachAuth(ctx, httpReq, connector, req.Secrets)

	fetcher := req.Fetcher
	if fetcher == nil {
		fetcher = e.client
	}
	resp, err := fetcher.Do(httpReq)
	if err != nil {
		return nil, warnResult(fmt.Sprintf("connector %q: request failed: %v", connector.ID, err)), true
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, warnResult(fmt.Sprintf("connector %q: unexpected status %d", connector.ID, resp.StatusCode)), true
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, warnResult(fmt.Sprintf("connector %q: reading response failed: %v", connector.ID, err)), true
	}

	rows, ok := extractRowsFromBody(body, src.ResponsePath)
	if !ok {
		return nil, warnResult(fmt.Sprintf("connector %q: response path %q is not an array", connector.ID, src.ResponsePath)), true
	}
	return rows, ExecResult{}, false
}

// attachAuth resolves secret_ref auth into a bearer header. A resolver that
// is missing, fails, or returns nothing degrades to an anonymous request;
// the secret value itself is never logged or surfaced.
func (e *Engine) attachAuth(ctx context.Context, httpReq *http.Request, connector *Connector, secrets SecretResolver) {
	if connector.Auth.Type != AuthSecretRef || connector.Auth.SecretRefID == "" {
		return
	}
	if secrets == nil {
		log.DebugfContext(ctx, "connector %s: no secret resolver, sending anonymous request", connector.ID)
		return
	}
	secret, err := secrets(ctx, connector.Auth.SecretRefID)
	if err != nil || secret == "" {
		log.DebugfContext(ctx, "connector %s: secret %s did not resolve, sending anonymous request",
			connector.ID, connector.Auth.SecretRefID)
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+secret)
}

// extractRowsFromBody parses the response and walks the dotted response path
// to the row array. An empty path means the body itself is the array.
func extractRowsFromBody(body []byte, responsePath string) ([]map[string]any, bool) {
	var result gjson.Result
	if responsePath == "" {
		result = gjson.ParseBytes(body)
	} else {
		if !gjson.ValidBytes(body) {
			return nil, false
		}
		result = gjson.GetBytes(body, responsePath)
	}
	if !result.IsArray() {
		return nil, false
	}
	elements := result.Array()
	rows := make([]map[string]any, 0, len(elements))
	for _, el := range elements {
		if obj, ok := el.Value().(map[string]any); ok {
			rows = append(rows, obj)
			continue
		}
		// Scalar arrays still map cleanly: expose the element under "value".
		rows = append(rows, map[string]any{"value": el.Value()})
	}
	return rows, true
}

// mapOutput projects rows to option items using the configured selectors.
func mapOutput(rows []map[string]any, out *Output) []Item {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item := Item{
			Label: stringValue(row[out.Label]),
			Value: row[out.Value],
		}
		if out.ID != "" {
			item.ID = stringValue(row[out.ID])
		}
		items = append(items, item)
	}
	return items
}

func joinURL(base, path string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u, nil
}

// hostAllowed checks the target host against the connector allowlist. No
// allowlist means no restriction.
func hostAllowed(connector *Connector, target *url.URL) bool {
	if len(connector.AllowHosts) == 0 {
		return true
	}
	host := strings.ToLower(target.Hostname())
	for _, allowed := range connector.AllowHosts {
		if strings.ToLower(allowed) == host {
			return true
		}
	}
	return false
}

func warnResult(warning string) ExecResult {
	return ExecResult{Warnings: []string{warning}}
}
