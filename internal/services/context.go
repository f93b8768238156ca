package services

import "context"

type contextKey string

const (
	packIDKey contextKey = "packID"
	stageKey  contextKey = "stage"
	runIDKey  contextKey = "runID"
)

// WithPackID attaches the pack identifier to the context.
func WithPackID(ctx context.Context, packID string) context.Context {
	if packID == "" {
		return ctx
	}
	return context.WithValue(ctx, packIDKey, packID)
}

// PackIDFromContext extracts the pack identifier, if present.
func PackIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(packIDKey).(string)
	return id, ok && id != ""
}

// WithStage attaches the pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext extracts the stage name, if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

// WithRunID attaches the pipeline run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run identifier, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}
