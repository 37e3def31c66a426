// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const keyHarvester ctxKey = "harvester"

// WithRequest annotates context with the request id
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	return ctx
}

// WithHarvester annotates context with the remote harvester address
func WithHarvester(ctx context.Context, addr string) context.Context {
	if addr != "" {
		ctx = context.WithValue(ctx, keyHarvester, addr)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// Harvester returns the harvester address on the context if present
func Harvester(ctx context.Context) string {
	if v, ok := ctx.Value(keyHarvester).(string); ok {
		return v
	}
	return ""
}
