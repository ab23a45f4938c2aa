package trial

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Config)
	order      []string
)

// Register adds a test configuration. Registering an id twice replaces the
// earlier configuration but keeps its position in List.
func Register(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[cfg.ID]; !exists {
		order = append(order, cfg.ID)
	}
	registry[cfg.ID] = cfg
	return nil
}

// Lookup returns the configuration registered under id.
func Lookup(id string) (Config, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	cfg, ok := registry[id]
	return cfg, ok
}

// List returns every registered configuration in registration order.
func List() []Config {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Config, 0, len(order))
	for _, id := range order {
		out = append(out, registry[id])
	}
	return out
}

func mustRegister(cfg Config) {
	if err := Register(cfg); err != nil {
		panic(fmt.Sprintf("trial: built-in %s", err))
	}
}

func init() {
	mustRegister(Acuity)
	mustRegister(Color)
	mustRegister(Amblyopia)
}
