package agent

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Catalog holds a set of agent definitions keyed by name.
type Catalog struct {
	agents map[string]*Agent
}

// NewCatalog builds a catalog from agents defined in code.
func NewCatalog(agents ...*Agent) *Catalog {
	catalog := &Catalog{
		agents: make(map[string]*Agent, len(agents)),
	}
	for _, agent := range agents {
		catalog.agents[agent.Name] = agent
	}
	return catalog
}

// LoadCatalog loads every **/*.md file under dir as an agent
// definition. Files that fail to parse are skipped with a warning so
// one broken definition does not take the whole catalog down.
func LoadCatalog(dir string) (*Catalog, error) {
	return loadCatalog(dir, slog.Default())
}

func loadCatalog(dir string, logger *slog.Logger) (*Catalog, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("accessing agent directory: %w", err)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.md")
	if err != nil {
		return nil, fmt.Errorf("globbing agent files: %w", err)
	}

	catalog := &Catalog{
		agents: make(map[string]*Agent, len(matches)),
	}
	for _, match := range matches {
		path := filepath.Join(dir, match)
		agent, err := Parse(path)
		if err != nil {
			logger.Warn("skipping unparsable agent file", "path", path, "error", err)
			continue
		}
		catalog.agents[agent.Name] = agent
	}

	return catalog, nil
}

// Get returns the agent named name.
func (c *Catalog) Get(name string) (*Agent, bool) {
	agent, ok := c.agents[name]
	return agent, ok
}

// Names returns the loaded agent names, sorted.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.agents))
}

// Len returns the number of loaded agents.
func (c *Catalog) Len() int {
	return len(c.agents)
}
