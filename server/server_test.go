//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-tracker-go/options"
	"trpc.group/trpc-go/trpc-tracker-go/schema"
)

type stubProvider struct {
	contexts map[string]*options.Context
}

func (p *stubProvider) OptionsContext(_ context.Context, trackerID string) (*options.Context, error) {
	execCtx, ok := p.contexts[trackerID]
	if !ok {
		return nil, errors.New("unknown tracker")
	}
	return execCtx, nil
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	provider := &stubProvider{
		contexts: map[string]*options.Context{
			"crm": {
				Functions: map[string]*options.Definition{
					"statuses": {
						ID:     "statuses",
						Source: &options.Source{Type: options.SourceGridRows, GridID: "statuses"},
						Output: &options.Output{Label: "name", Value: "id"},
					},
				},
				GridData: schema.GridData{
					"statuses": []schema.Row{
						{"id": "open", "name": "Open"},
						{"id": "done", "name": "Done"},
					},
				},
			},
		},
	}
	resolver := options.NewResolver(options.NewEngine())
	return New(resolver, provider, opts...)
}

func postResolve(t *testing.T, handler http.Handler, trackerID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost,
		"/v1/trackers/"+trackerID+"/options/resolve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestResolveCustomFunction(t *testing.T) {
	rec := postResolve(t, newTestServer(t).Handler(), "crm", `{"functionId":"statuses"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolution options.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolution))
	assert.Equal(t, options.SourceLocalCustom, resolution.Meta.Source)
	require.Len(t, resolution.Options, 2)
	assert.Equal(t, "open", resolution.Options[0].Value)
}

func TestResolveBuiltin(t *testing.T) {
	rec := postResolve(t, newTestServer(t).Handler(), "crm",
		`{"functionId":"`+options.BuiltinRuleActions+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolution options.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolution))
	assert.Equal(t, options.SourceBuiltin, resolution.Meta.Source)
	assert.Len(t, resolution.Options, 4)
}

func TestResolveBadRequests(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := postResolve(t, handler, "crm", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postResolve(t, handler, "crm", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "functionId")
}

func TestResolveUnknownTracker(t *testing.T) {
	rec := postResolve(t, newTestServer(t).Handler(), "ghost", `{"functionId":"statuses"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestServer(t, WithAllowedOrigins([]string{"https://app.example.com"})).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/v1/trackers/crm/options/resolve", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com",
		rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
