package monitor

import (
	"sort"
	"sync"

	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/danmuck/wlctl/internal/protocol/session"
)

// Global is one advertised registry entry. CatalogVersion is the highest
// version the local catalog understands, 0 when the interface is unknown.
type Global struct {
	Name           uint32 `json:"name"`
	Interface      string `json:"interface"`
	Version        uint32 `json:"version"`
	CatalogVersion uint32 `json:"catalog_version,omitempty"`
}

// Bindable is the version a client would bind at.
func (g Global) Bindable() uint32 {
	return min(g.Version, g.CatalogVersion)
}

// Globals stores advertised globals by registry name. Readers are HTTP
// handlers; the single writer is the monitor loop.
type Globals struct {
	mu    sync.RWMutex
	items map[uint32]Global
}

func NewGlobals() *Globals {
	return &Globals{
		items: make(map[uint32]Global),
	}
}

func (g *Globals) Upsert(item Global) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items[item.Name] = item
}

func (g *Globals) Remove(name uint32) (Global, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, ok := g.items[name]
	delete(g.items, name)
	return item, ok
}

func (g *Globals) Get(name uint32) (Global, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	item, ok := g.items[name]
	return item, ok
}

// List returns globals ordered by registry name.
func (g *Globals) List() []Global {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Global, 0, len(g.items))
	for _, item := range g.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// ByInterface returns globals advertising iface, ordered by name.
func (g *Globals) ByInterface(iface string) []Global {
	var out []Global
	for _, item := range g.List() {
		if item.Interface == iface {
			out = append(out, item)
		}
	}
	return out
}

func (g *Globals) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.items)
}

func (g *Globals) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = make(map[uint32]Global)
}

// Apply folds one wl_registry event into the table and reports whether it
// changed anything. cat supplies CatalogVersion for new entries.
func (g *Globals) Apply(ev session.Event, cat *schema.Catalog) bool {
	switch ev.Name() {
	case "global":
		name, _ := ev.Arg("name")
		iface, _ := ev.Arg("interface")
		version, _ := ev.Arg("version")
		item := Global{Name: name.Uint, Interface: iface.Str, Version: version.Uint}
		if cat != nil {
			if known, ok := cat.Interface(iface.Str); ok {
				item.CatalogVersion = known.Version
			}
		}
		g.Upsert(item)
		return true
	case "global_remove":
		name, _ := ev.Arg("name")
		_, ok := g.Remove(name.Uint)
		return ok
	}
	return false
}
