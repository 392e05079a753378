//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the trusted HTTP surface for dynamic-options
// resolution. Clients that cannot perform outbound requests themselves (the
// requires-remote outcome) defer to this server, which runs the resolver
// with the http_get capability enabled.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-tracker-go/log"
	"trpc.group/trpc-go/trpc-tracker-go/options"
)

// ContextProvider supplies the per-tracker resolution context: grid data,
// custom function definitions and connectors. The storage layer behind it is
// not this module's concern.
type ContextProvider interface {
	OptionsContext(ctx context.Context, trackerID string) (*options.Context, error)
}

// Option configures the Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origin allowlist. Empty means
// same-origin only.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithSecretResolver installs the secret-reference resolver handed to the
// options engine.
func WithSecretResolver(resolver options.SecretResolver) Option {
	return func(s *Server) { s.secrets = resolver }
}

// Server routes dynamic-options resolution requests to the resolver.
type Server struct {
	router         *mux.Router
	resolver       *options.Resolver
	contexts       ContextProvider
	secrets        options.SecretResolver
	allowedOrigins []string
}

// New creates a Server on top of resolver and contexts.
func New(resolver *options.Resolver, contexts ContextProvider, opts ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		resolver: resolver,
		contexts: contexts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/trackers/{trackerID}/options/resolve", s.handleResolve).Methods(http.MethodPost)
}

// Handler returns the fully wired HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

type resolveRequest struct {
	FunctionID string `json:"functionId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	trackerID := mux.Vars(r)["trackerID"]

	var body resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if body.FunctionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "functionId is required"})
		return
	}

	execCtx, err := s.contexts.OptionsContext(r.Context(), trackerID)
	if err != nil {
		log.WarnfContext(r.Context(), "options resolve %s: tracker %s context unavailable: %v",
			requestID, trackerID, err)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "tracker not found"})
		return
	}

	resolution := s.resolver.Resolve(r.Context(), &options.ResolveRequest{
		TrackerID:    trackerID,
		FunctionID:   body.FunctionID,
		Context:      execCtx,
		AllowHTTPGet: true,
		Secrets:      s.secrets,
	})
	log.DebugfContext(r.Context(), "options resolve %s: tracker %s function %s -> %d options (%s)",
		requestID, trackerID, body.FunctionID, len(resolution.Options), resolution.Meta.Source)
	writeJSON(w, http.StatusOK, resolution)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("write response: %v", err)
	}
}
