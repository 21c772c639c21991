package bamboo

import (
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// PlanRoutes maps repository names to the plan key that builds them. The
// mapping is read from the `plans` table of a config file, for example:
//
//	plans:
//	  webhook-bridge: WB-MAIN
//	  flogo-app: FLOGO-CI
//
// Repository names are matched case-insensitively.
type PlanRoutes struct {
	mu    sync.RWMutex
	plans map[string]string

	v   *viper.Viper
	log zerolog.Logger
}

// NewPlanRoutes creates a static mapping.
func NewPlanRoutes(plans map[string]string) *PlanRoutes {
	r := &PlanRoutes{log: zerolog.Nop()}
	r.set(plans)
	return r
}

// LoadPlanRoutes reads the mapping from a config file in any format viper
// understands.
func LoadPlanRoutes(path string, logger zerolog.Logger) (*PlanRoutes, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithMessagef(err, "reading plan config %s", path)
	}

	r := &PlanRoutes{v: v, log: logger}
	r.set(v.GetStringMapString("plans"))
	logger.Info().Int("plans", r.Len()).Str("file", path).Msg("Loaded plan routes")
	return r, nil
}

// Watch reloads the mapping whenever the config file changes.
func (r *PlanRoutes) Watch() {
	if r.v == nil {
		return
	}
	r.v.OnConfigChange(func(e fsnotify.Event) {
		r.set(r.v.GetStringMapString("plans"))
		r.log.Info().Str("file", e.Name).Str("op", e.Op.String()).Int("plans", r.Len()).Msg("Reloaded plan routes")
	})
	r.v.WatchConfig()
}

// PlanKey returns the plan key configured for a repository.
func (r *PlanRoutes) PlanKey(repository string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.plans[strings.ToLower(repository)]
	return key, ok && key != ""
}

// Len returns the number of configured repositories.
func (r *PlanRoutes) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plans)
}

func (r *PlanRoutes) set(plans map[string]string) {
	normalized := make(map[string]string, len(plans))
	for repo, key := range plans {
		normalized[strings.ToLower(repo)] = key
	}
	r.mu.Lock()
	r.plans = normalized
	r.mu.Unlock()
}
