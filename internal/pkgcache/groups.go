package pkgcache

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// GroupLookup resolves the groups a package name belongs to.
type GroupLookup func(ctx context.Context, name string) ([]string, error)

// GroupCache memoizes GroupLookup results by package name.
type GroupCache struct {
	lookup GroupLookup

	mu     sync.Mutex
	byName map[string][]string
}

func NewGroupCache(lookup GroupLookup) *GroupCache {
	return &GroupCache{lookup: lookup, byName: make(map[string][]string)}
}

// Lookup returns the groups of name, asking the source once per name.
func (g *GroupCache) Lookup(ctx context.Context, name string) ([]string, error) {
	g.mu.Lock()
	if v, ok := g.byName[name]; ok {
		g.mu.Unlock()
		return v, nil
	}
	g.mu.Unlock()
	if g.lookup == nil {
		return nil, nil
	}
	groups, err := g.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.byName[name] = groups
	g.mu.Unlock()
	return groups, nil
}

func (g *GroupCache) Reset() {
	g.mu.Lock()
	g.byName = make(map[string][]string)
	g.mu.Unlock()
}

// Taxonomy maps group ids to member package names. It is loaded from a
// static YAML asset:
//
//	groups:
//	  development-tools: [gcc, make, gdb]
type Taxonomy struct {
	Groups map[string][]string `yaml:"groups"`
}

// LoadTaxonomy reads a group taxonomy file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Taxonomy
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}
	return &t, nil
}

// Lookup scans the taxonomy for groups listing name. It is linear in the
// taxonomy size; wrap it in a GroupCache.
func (t *Taxonomy) Lookup(_ context.Context, name string) ([]string, error) {
	var out []string
	for group, members := range t.Groups {
		for _, m := range members {
			if m == name {
				out = append(out, group)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
