package pkgcache

// Filter decides whether a package is shown.
type Filter interface {
	Keep(p *Package) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(p *Package) bool

func (f FilterFunc) Keep(p *Package) bool { return f(p) }

// ArchFilter keeps packages built for one of archs. noarch packages are
// always kept. An empty list keeps everything.
func ArchFilter(archs ...string) Filter {
	allowed := make(map[string]struct{}, len(archs))
	for _, a := range archs {
		allowed[a] = struct{}{}
	}
	return FilterFunc(func(p *Package) bool {
		if len(allowed) == 0 || p.Arch == "noarch" {
			return true
		}
		_, ok := allowed[p.Arch]
		return ok
	})
}

func applyFilters(pkgs []*Package, filters []Filter) []*Package {
	if len(filters) == 0 {
		return pkgs
	}
	out := make([]*Package, 0, len(pkgs))
next:
	for _, p := range pkgs {
		for _, f := range filters {
			if !f.Keep(p) {
				continue next
			}
		}
		out = append(out, p)
	}
	return out
}
