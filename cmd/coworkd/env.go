package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mesutfelat/cowork/internal/config"
	"github.com/mesutfelat/cowork/internal/engine"
	"github.com/mesutfelat/cowork/internal/eventlog"
	"github.com/mesutfelat/cowork/internal/memory"
	"github.com/mesutfelat/cowork/internal/workspace"
)

const pollInterval = 500 * time.Millisecond

// runtimeEnv bundles the process-wide resources: the event log, the task
// memory index, and the effective daemon settings.
type runtimeEnv struct {
	WorkspaceDir   string
	Store          *eventlog.Store
	Memory         *memory.Index
	Config         *config.Manager
	Limits         engine.Limits
	MaxConcurrent  int
	MaxTaskRetries int
	RetryDelay     time.Duration
}

// Close releases the stores.
func (r *runtimeEnv) Close() {
	if r.Memory != nil {
		if err := r.Memory.Close(); err != nil {
			log.Printf("⚠️  memory index close: %v", err)
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			log.Printf("⚠️  event log close: %v", err)
		}
	}
}

// prepareRuntimeEnv resolves the workspace, applies persisted configuration
// to the environment, and opens the per-workspace stores under .cowork/.
func prepareRuntimeEnv(ctx context.Context, workspaceFlag string, maxConcurrentFlag int) (*runtimeEnv, error) {
	dir := workspaceFlag
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("workspace path is not a valid directory: %s", absDir)
	}
	log.Printf("Workspace root: %s", absDir)

	cfgManager, err := config.NewManager()
	if err != nil {
		log.Printf("⚠️  config manager unavailable: %v", err)
	}
	var cfg *config.Config
	if cfgManager != nil {
		cfg, err = cfgManager.Load()
		if err != nil {
			log.Printf("⚠️  failed to load config: %v (using env only)", err)
			cfg = &config.Config{}
		}
		applyConfigToEnv(cfg)
	} else {
		cfg = &config.Config{}
	}

	stateDir := filepath.Join(absDir, workspace.CoworkDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", workspace.CoworkDir, err)
	}

	store, err := eventlog.Open(ctx, filepath.Join(stateDir, "tasks.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	var mem *memory.Index
	idx, err := memory.Open(filepath.Join(stateDir, "memory.bleve"))
	if err != nil {
		log.Printf("⚠️  task memory unavailable: %v (recall disabled)", err)
	} else {
		mem = idx
	}

	limits := engine.DefaultLimits()
	if cfg.MaxIterations > 0 {
		limits.MaxIterations = cfg.MaxIterations
	}
	if cfg.MaxTotalTokens > 0 {
		limits.MaxTotalTokens = cfg.MaxTotalTokens
	}
	if cfg.MaxCostUSD > 0 {
		limits.MaxCostUSD = cfg.MaxCostUSD
	}

	maxConcurrent := maxConcurrentFlag
	if maxConcurrent <= 0 {
		maxConcurrent = cfg.MaxConcurrentTasks
	}

	retryDelay := time.Duration(0)
	if cfg.RetryDelaySeconds > 0 {
		retryDelay = time.Duration(cfg.RetryDelaySeconds) * time.Second
	}

	return &runtimeEnv{
		WorkspaceDir:  absDir,
		Store:         store,
		Memory:        mem,
		Config:        cfgManager,
		Limits:        limits,
		MaxConcurrent: maxConcurrent,
		RetryDelay:    retryDelay,
	}, nil
}

// sleepCtx sleeps unless the context ends first. Reports whether the full
// interval elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
