package preflight

import (
	"context"

	"rtsync/internal/config"
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

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		// Room for at least one maximum-size video in the spool.
		CheckFreeSpace("Spool free space", cfg.Paths.DataDir, int64(cfg.Media.VideoMaxMB)<<20),
		CheckCredentialsFromConfig(cfg),
	}

	if cfg.Connectivity.Mode != config.ConnectivityManual {
		results = append(results, CheckLinkState(cfg.Connectivity.SysfsRoot))
	}

	results = append(results, CheckServer(ctx, cfg.Server.BaseURL))
	return results
}

// Failed filters results down to failures.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
