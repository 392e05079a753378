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
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-tracker-go/schema"
)

// stubFetcher serves a canned response and records the request it saw.
type stubFetcher struct {
	status  int
	body    string
	err     error
	lastReq *http.Request
}

func (s *stubFetcher) Do(req *http.Request) (*http.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
	}, nil
}

func currencyDef() *Definition {
	return &Definition{
		ID:           "currency_codes",
		Engine:       EngineGraphV1,
		EntryNodeID:  "start",
		ReturnNodeID: "out",
		Nodes: []*GraphNode{
			{ID: "start", Kind: NodeControlStart},
			{ID: "fetch", Kind: NodeSourceHTTPGet, Config: NodeConfig{
				ConnectorID: "fx", Path: "/currencies", ResponsePath: "data",
			}},
			{ID: "uniq", Kind: NodeTransformUnique, Config: NodeConfig{Key: "code"}},
			{ID: "by_code", Kind: NodeTransformSort, Config: NodeConfig{Key: "code", Direction: DirectionAsc}},
			{ID: "out", Kind: NodeOutputOptions, Config: NodeConfig{LabelKey: "code", ValueKey: "code"}},
		},
		Edges: []*GraphEdge{
			{Source: "start", Target: "fetch"},
			{Source: "fetch", Target: "uniq"},
			{Source: "uniq", Target: "by_code"},
			{Source: "by_code", Target: "out"},
		},
	}
}

func currencyContext() *Context {
	return &Context{
		Connectors: map[string]*Connector{
			"fx": {
				ID:         "fx",
				BaseURL:    "https://api.example.com/v1",
				Auth:       Auth{Type: AuthSecretRef, SecretRefID: "fx_token"},
				AllowHosts: []string{"api.example.com"},
			},
		},
	}
}

func TestExecuteGraphRemoteGated(t *testing.T) {
	engine := NewEngine()
	result := engine.Execute(context.Background(), &ExecuteRequest{
		Definition:   currencyDef(),
		Context:      currencyContext(),
		AllowHTTPGet: false,
	})

	assert.True(t, result.RequiresRemote)
	assert.Empty(t, result.Options)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "requires server execution")
}

func TestExecuteGraphHTTPSource(t *testing.T) {
	fetcher := &stubFetcher{
		status: http.StatusOK,
		body:   `{"data":[{"code":"USD"},{"code":"EUR"},{"code":"USD"}]}`,
	}
	engine := NewEngine()
	result := engine.Execute(context.Background(), &ExecuteRequest{
		Definition:   currencyDef(),
		Context:      currencyContext(),
		AllowHTTPGet: true,
		Fetcher:      fetcher,
		Secrets: func(ctx context.Context, id string) (string, error) {
			assert.Equal(t, "fx_token", id)
			return "s3cret", nil
		},
	})

	assert.False(t, result.RequiresRemote)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Options, 2)
	assert.Equal(t, "EUR", result.Options[0].Value)
	assert.Equal(t, "USD", result.Options[1].Value)

	require.NotNil(t, fetcher.lastReq)
	assert.Equal(t, http.MethodGet, fetcher.lastReq.Method)
	assert.Equal(t, "https://api.example.com/v1/currencies", fetcher.lastReq.URL.String())
	assert.Equal(t, "Bearer s3cret", fetcher.lastReq.Header.Get("Authorization"))
}

func TestExecuteGraphSecretFailureSendsAnonymous(t *testing.T) {
	fetcher := &stubFetcher{status: http.StatusOK, body: `{"data":[]}`}
	engine := NewEngine()
	result := engine.Execute(context.Background(), &ExecuteRequest{
		Definition:   currencyDef(),
		Context:      currencyContext(),
		AllowHTTPGet: true,
		Fetcher:      fetcher,
		Secrets: func(ctx context.Context, id string) (string, error) {
			return "", errors.New("vault unavailable")
		},
	})

	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Options)
	require.NotNil(t, fetcher.lastReq)
	assert.Empty(t, fetcher.lastReq.Header.Get("Authorization"))
}

func TestExecuteGraphHostNotAllowed(t *testing.T) {
	execCtx := currencyContext()
	execCtx.Connectors["fx"].BaseURL = "https://evil.example.net/v1"

	engine := NewEngine()
	result := engine.Execute(context.Background(), &ExecuteRequest{
		Definition:   currencyDef(),
		Context:      execCtx,
		AllowHTTPGet: true,
		Fetcher:      &stubFetcher{status: http.StatusOK, body: `{"data":[]}`},
	})

	assert.Empty(t, result.Options)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "not allowed")
}

func TestExecuteGraphHTTPFailures(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
		warn    string
	}{
		{"transport error", &stubFetcher{err: errors.New("connection refused")}, "request failed"},
		{"non-2xx status", &stubFetcher{status: http.StatusBadGateway, body: "oops"}, "unexpected status 502"},
		{"path not an array", &stubFetcher{status: http.StatusOK, body: `{"data":{"code":"USD"}}`}, "is not an array"},
		{"invalid json", &stubFetcher{status: http.StatusOK, body: `{{{`}, "is not an array"},
	}
	engine := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Execute(context.Background(), &ExecuteRequest{
				Definition:   currencyDef(),
				Context:      currencyContext(),
				AllowHTTPGet: true,
				Fetcher:      tt.fetcher,
			})
			assert.Empty(t, result.Options)
			require.NotEmpty(t, result.Warnings)
			assert.Contains(t, result.Warnings[0], tt.warn)
		})
	}
}

func TestExecuteFlatGridRows(t *testing.T) {
	falseV := false
	def := &Definition{
		ID:     "statuses",
		Source: &Source{Type: SourceGridRows, GridID: "statuses"},
		Transforms: []*Transform{
			{Type: TransformSort, Key: "order", ValueType: ValueTypeNumber},
		},
		Output: &Output{Label: "name", Value: "id"},
	}
	execCtx := &Context{
		GridData: schema.GridData{
			"statuses": []schema.Row{
				{"id": "done", "name": "Done", "order": 3},
				{"id": "open", "name": "Open", "order": 1},
				{"id": "wip", "name": "In progress", "order": 2},
			},
		},
	}

	engine := NewEngine()
	result := engine.Execute(context.Background(), &ExecuteRequest{Definition: def, Context: execCtx})
	require.Len(t, result.Options, 3)
	assert.Equal(t, []any{"open", "wip", "done"},
		[]any{result.Options[0].Value, result.Options[1].Value, result.Options[2].Value})
	assert.Equal(t, "Open", result.Options[0].Label)

	// A disabled definition never executes.
	def.Enabled = &falseV
	result = engine.Execute(context.Background(), &ExecuteRequest{Definition: def, Context: execCtx})
	assert.Empty(t, result.Options)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "disabled")
}

func TestExecuteFlatMissingGrid(t *testing.T) {
	def := &Definition{
		ID:     "broken",
		Source: &Source{Type: SourceGridRows, GridID: "nope"},
		Output: &Output{Label: "name", Value: "id"},
	}
	engine := NewEngine()
	result := engine.Execute(context.Background(), &ExecuteRequest{
		Definition: def,
		Context:    &Context{GridData: schema.GridData{}},
	})
	assert.Empty(t, result.Options)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "does not exist")
}

func TestExecuteGraphInvalidDefinitionWarns(t *testing.T) {
	def := currencyDef()
	def.Edges = def.Edges[:1]

	engine := NewEngine()
	result := engine.Execute(context.Background(), &ExecuteRequest{Definition: def, Context: currencyContext()})
	assert.Empty(t, result.Options)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "graph compile")
}

type stubExtractor struct {
	rows []map[string]any
	err  error
}

func (s *stubExtractor) ExtractOptions(ctx context.Context, rows []map[string]any) ([]map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func TestExecuteGraphAIExtract(t *testing.T) {
	def := &Definition{
		ID:           "labels",
		Engine:       EngineGraphV1,
		EntryNodeID:  "start",
		ReturnNodeID: "out",
		Nodes: []*GraphNode{
			{ID: "start", Kind: NodeControlStart},
			{ID: "src", Kind: NodeSourceGridRows, Config: NodeConfig{GridID: "notes"}},
			{ID: "ai", Kind: NodeAIExtractOptions},
			{ID: "out", Kind: NodeOutputOptions, Config: NodeConfig{LabelKey: "label", ValueKey: "value"}},
		},
		Edges: []*GraphEdge{
			{Source: "start", Target: "src"},
			{Source: "src", Target: "ai"},
			{Source: "ai", Target: "out"},
		},
	}
	execCtx := &Context{
		GridData: schema.GridData{
			"notes": []schema.Row{{"text": "blocked by vendor"}},
		},
	}

	engine := NewEngine(WithExtractor(&stubExtractor{
		rows: []map[string]any{{"label": "Blocked", "value": "blocked"}},
	}))
	result := engine.Execute(context.Background(), &ExecuteRequest{Definition: def, Context: execCtx})
	require.Len(t, result.Options, 1)
	assert.Equal(t, "Blocked", result.Options[0].Label)

	// Without an extractor the node degrades to a passthrough with a warning.
	engine = NewEngine()
	result = engine.Execute(context.Background(), &ExecuteRequest{Definition: def, Context: execCtx})
	require.Len(t, result.Options, 1)
	assert.Equal(t, "", result.Options[0].Label)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "no extractor")
}

func TestExecuteGraphCyclicLayoutStillReachesReturn(t *testing.T) {
	// The back-edge to the source is declared before the edge to the return
	// node, and the source still reaches the return node, so a walk that
	// ignores where it has been would loop between the two until the hop
	// bound trips.
	def := &Definition{
		ID:           "statuses",
		Engine:       EngineGraphV1,
		EntryNodeID:  "start",
		ReturnNodeID: "out",
		Nodes: []*GraphNode{
			{ID: "start", Kind: NodeControlStart},
			{ID: "src", Kind: NodeSourceGridRows, Config: NodeConfig{GridID: "statuses"}},
			{ID: "uniq", Kind: NodeTransformUnique, Config: NodeConfig{Key: "id"}},
			{ID: "out", Kind: NodeOutputOptions, Config: NodeConfig{LabelKey: "name", ValueKey: "id"}},
		},
		Edges: []*GraphEdge{
			{Source: "start", Target: "src"},
			{Source: "src", Target: "uniq"},
			{Source: "uniq", Target: "src"},
			{Source: "uniq", Target: "out"},
		},
	}
	execCtx := &Context{
		GridData: schema.GridData{
			"statuses": []schema.Row{{"id": "open", "name": "Open"}},
		},
	}

	engine := NewEngine()
	result := engine.Execute(context.Background(), &ExecuteRequest{Definition: def, Context: execCtx})
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Options, 1)
	assert.Equal(t, "open", result.Options[0].Value)
}

func TestExtractRowsFromBodyScalars(t *testing.T) {
	rows, ok := extractRowsFromBody([]byte(`["USD","EUR"]`), "")
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "USD", rows[0]["value"])
}
