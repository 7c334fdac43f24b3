// Package ingest bridges worker-queue completions back into task and image
// state. The queue runner delivers raw results here; normalization shields
// the handlers from the shape of whatever the worker actually returned.
package ingest

import (
	"encoding/json"
	"fmt"
)

// ImageInfo describes one image reported by a build result.
type ImageInfo struct {
	ID       string
	RepoTags []string
}

// BuildResult is the normalized shape of a finished build. Any field may be
// absent; missing optional fields skip the dependent ingestion step.
type BuildResult struct {
	BuiltImage    *ImageInfo
	BaseImage     *ImageInfo
	Dockerfile    string
	BuiltPackages []string
	BasePackages  []string
	LogLines      []string
}

// MoveResult is the normalized shape of a finished move/push.
type MoveResult struct {
	Error string `json:"error"`
}

// NormalizeBuildResult converts a raw worker result into a BuildResult.
// Workers have reported several shapes over time; this adapter reads the
// known keys tolerantly and never fails on absent or oddly-typed fields.
func NormalizeBuildResult(raw map[string]interface{}) *BuildResult {
	if raw == nil {
		return nil
	}
	res := &BuildResult{
		Dockerfile:    chainString(raw, "dockerfile"),
		BuiltPackages: chainStrings(raw, "built_img_plugins_output", "all_packages"),
		BasePackages:  chainStrings(raw, "base_plugins_output", "all_packages"),
		LogLines:      chainStrings(raw, "build_log"),
	}
	if id := chainString(raw, "built_img_info", "Id"); id != "" {
		res.BuiltImage = &ImageInfo{ID: id, RepoTags: chainStrings(raw, "built_img_info", "RepoTags")}
	}
	if id := chainString(raw, "base_img_info", "Id"); id != "" {
		res.BaseImage = &ImageInfo{ID: id, RepoTags: chainStrings(raw, "base_img_info", "RepoTags")}
	}
	return res
}

// ParseBuildResult decodes a stored raw result JSON document. Empty input
// means the worker reported nothing, which the handler maps to failure.
func ParseBuildResult(data string) (*BuildResult, error) {
	if data == "" {
		return nil, nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("ingest: parse build result: %w", err)
	}
	return NormalizeBuildResult(raw), nil
}

// ParseMoveResult decodes a stored raw move result JSON document.
func ParseMoveResult(data string) (*MoveResult, error) {
	if data == "" {
		return nil, nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("ingest: parse move result: %w", err)
	}
	return &MoveResult{Error: chainString(raw, "error")}, nil
}

// chainGet walks nested maps by key, returning nil when any step is absent
// or not a map.
func chainGet(raw map[string]interface{}, keys ...string) interface{} {
	var current interface{} = raw
	for _, key := range keys {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = m[key]
		if !ok {
			return nil
		}
	}
	return current
}

func chainString(raw map[string]interface{}, keys ...string) string {
	s, _ := chainGet(raw, keys...).(string)
	return s
}

func chainStrings(raw map[string]interface{}, keys ...string) []string {
	items, ok := chainGet(raw, keys...).([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
