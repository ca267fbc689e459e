// Package store is the hierarchical key-value store addressed by
// slash-delimited paths such as users/{id} or products/{id}.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for empty paths or paths with empty, "." or ".." segments
var ErrInvalidPath = errors.New("invalid store path")

// Store is implemented by the Redis and Postgres backends
type Store interface {
	// Read returns the JSON value at path, or nil when absent
	Read(ctx context.Context, path string) (json.RawMessage, error)
	Write(ctx context.Context, path string, value interface{}) error
	// Update merges top-level fields into the value at path, creating it if needed
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Delete removes path and everything below it
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	// Children returns the direct children of path keyed by their last segment
	Children(ctx context.Context, path string) (map[string]json.RawMessage, error)
	Health(ctx context.Context) error
}

// CleanPath trims surrounding slashes and validates every segment
func CleanPath(path string) (string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return trimmed, nil
}

// Join builds a path from segments
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// split returns the parent path ("" for top-level nodes) and the last segment
func split(path string) (parent, name string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// mergeFields applies fields over the JSON object in current
func mergeFields(current []byte, fields map[string]interface{}) ([]byte, error) {
	merged := map[string]interface{}{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return nil, fmt.Errorf("existing value is not an object: %w", err)
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
