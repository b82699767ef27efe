package service

import (
	"sync"

	"xp_engine/internal/config"
)

// EngineTuning hands the current engine configuration to the services and is
// swapped on config reload.
type EngineTuning struct {
	mu  sync.RWMutex
	cfg config.EngineConfig
}

func NewEngineTuning(cfg config.EngineConfig) *EngineTuning {
	return &EngineTuning{cfg: cfg}
}

func (t *EngineTuning) Get() config.EngineConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Update replaces the configuration if it is valid.
func (t *EngineTuning) Update(cfg config.EngineConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
	return nil
}
