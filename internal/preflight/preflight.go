package preflight

import (
	"context"
	"strings"

	"reelsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	for _, root := range cfg.Roots() {
		results = append(results, CheckDirectoryAccess("Library "+root.Category.String(), root.Path))
	}
	if cfg.Paths.CacheDir != "" {
		results = append(results, CheckDirectoryAccess("Metadata cache", cfg.Paths.CacheDir))
	}
	if cfg.KeyFrames.Enabled {
		results = append(results, CheckDirectoryAccess("Key frames", cfg.Paths.KeyFrameDir))
	}
	if strings.TrimSpace(cfg.TMDB.APIKey) != "" {
		results = append(results, CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
