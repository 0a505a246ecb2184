package agentdef

import (
	"errors"
	"io/fs"
	"sort"
	"sync"

	"github.com/soyeahso/orchestrator/internal/logging"
)

// Catalog maps app names to definitions.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewCatalog returns a catalog holding defs.
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		c.Add(d)
	}
	return c
}

// Add registers def under its app name and reports whether it replaced an
// earlier definition.
func (c *Catalog) Add(def Definition) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, replaced := c.defs[def.AppName]
	c.defs[def.AppName] = def
	return replaced
}

// Get returns the definition for app.
func (c *Catalog) Get(app string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defs[app]
	return d, ok
}

// Apps returns the app names, sorted.
func (c *Catalog) Apps() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	apps := make([]string, 0, len(c.defs))
	for a := range c.defs {
		apps = append(apps, a)
	}
	sort.Strings(apps)
	return apps
}

// Len returns the number of apps.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// LoadCatalog builds the catalog served from dir: the builtin orchestrator
// plus every definition Discover finds. A discovered app named like the
// orchestrator replaces it. A missing dir only leaves the builtin in place.
func LoadCatalog(dir string, log *logging.Logger) (*Catalog, error) {
	log = log.Sub("agentdef")
	cat := NewCatalog(Orchestrator())

	if dir == "" {
		return cat, nil
	}

	defs, err := Discover(dir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("dir", dir).Msg("agents dir does not exist, serving builtin orchestrator only")
		return cat, nil
	}
	if err != nil {
		return nil, err
	}

	for _, d := range defs {
		if cat.Add(d) {
			log.Info().Str("app", d.AppName).Str("source", d.Source).Msg("agent definition overrides builtin")
			continue
		}
		log.Debug().Str("app", d.AppName).Str("source", d.Source).Msg("discovered agent")
	}
	return cat, nil
}
