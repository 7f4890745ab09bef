package workspace

import (
	"sort"
	"strings"
)

// featureResolver computes each package's enabled feature set as a fixpoint
// over the [features] tables of all packages in the load.
type featureResolver struct {
	byName  map[string]*Package
	enabled map[*Package]map[string]bool
	active  map[*Package]map[string]bool // optional deps switched on

	// weak holds name?/feat requests waiting for the dependency to be
	// switched on by something else.
	weak map[*Package]map[string][]string
}

// resolveFeatures sets Features on every package. Members start from the
// requested set; path dependencies only get what their dependents enable.
//
// requested entries are either "feat" (applies to every member defining it)
// or "pkg/feat".
func resolveFeatures(pkgs []*Package, requested []string, allFeatures, noDefault bool) *featureResolver {
	r := &featureResolver{
		byName:  map[string]*Package{},
		enabled: map[*Package]map[string]bool{},
		active:  map[*Package]map[string]bool{},
		weak:    map[*Package]map[string][]string{},
	}
	for _, p := range pkgs {
		r.byName[p.Name] = p
		r.enabled[p] = map[string]bool{}
		r.active[p] = map[string]bool{}
		r.weak[p] = map[string][]string{}
	}

	for _, p := range pkgs {
		if !p.IsMember {
			continue
		}
		if allFeatures {
			for _, f := range p.Declared() {
				r.enable(p, f)
			}
		}
		if !noDefault {
			r.enable(p, "default")
		}
		for _, req := range requested {
			pkg, feat, scoped := strings.Cut(req, "/")
			switch {
			case scoped && pkg == p.Name:
				r.enable(p, feat)
			case !scoped && r.defines(p, req):
				r.enable(p, req)
			}
		}
		r.activateRequired(p)
	}

	for _, p := range pkgs {
		feats := make([]string, 0, len(r.enabled[p]))
		for f := range r.enabled[p] {
			if r.defines(p, f) {
				feats = append(feats, f)
			}
		}
		sort.Strings(feats)
		p.Features = feats
	}
	return r
}

// defines reports whether feat is a [features] key or an implicit
// optional-dependency feature of p.
func (r *featureResolver) defines(p *Package, feat string) bool {
	if _, ok := p.Manifest.Features[feat]; ok {
		return true
	}
	for _, d := range p.Deps {
		if d.Optional && d.Name == feat && !p.hasDepSyntax(d.Name) {
			return true
		}
	}
	return false
}

func (r *featureResolver) enable(p *Package, feat string) {
	if r.enabled[p][feat] {
		return
	}
	r.enabled[p][feat] = true

	entries, explicit := p.Manifest.Features[feat]
	if !explicit {
		// Implicit feature of an optional dependency.
		if d, ok := r.dep(p, feat); ok && d.Optional {
			r.activateDep(p, d)
		}
		return
	}
	for _, e := range entries {
		r.enableEntry(p, e)
	}
}

// enableEntry applies one value of a [features] array: a plain feature,
// dep:name, name/feat or name?/feat.
func (r *featureResolver) enableEntry(p *Package, entry string) {
	if dep, ok := strings.CutPrefix(entry, "dep:"); ok {
		if d, ok := r.dep(p, dep); ok {
			r.activateDep(p, d)
		}
		return
	}
	depName, feat, ok := strings.Cut(entry, "/")
	if !ok {
		r.enable(p, entry)
		return
	}
	weak := strings.HasSuffix(depName, "?")
	depName = strings.TrimSuffix(depName, "?")
	d, ok := r.dep(p, depName)
	if !ok {
		return
	}
	if d.Optional && !weak {
		if r.defines(p, d.Name) {
			r.enable(p, d.Name)
		} else {
			r.activateDep(p, d)
		}
	}
	if d.Optional && !r.active[p][d.Name] {
		r.weak[p][d.Name] = append(r.weak[p][d.Name], feat)
		return
	}
	if target, ok := r.byName[d.Package]; ok {
		r.enable(target, feat)
	}
}

// activateDep switches on dependency d of p and applies the features the
// dependency declaration requests.
func (r *featureResolver) activateDep(p *Package, d Dependency) {
	if r.active[p][d.Name] {
		return
	}
	r.active[p][d.Name] = true
	target, ok := r.byName[d.Package]
	if !ok {
		return
	}
	if d.DefaultFeatures {
		r.enable(target, "default")
	}
	for _, f := range d.Features {
		r.enable(target, f)
	}
	for _, f := range r.weak[p][d.Name] {
		r.enable(target, f)
	}
	delete(r.weak[p], d.Name)
	r.activateRequired(target)
}

// activateRequired switches on every non-optional dependency of p.
func (r *featureResolver) activateRequired(p *Package) {
	for _, d := range p.Deps {
		if !d.Optional {
			r.activateDep(p, d)
		}
	}
}

func (r *featureResolver) dep(p *Package, name string) (Dependency, bool) {
	for _, d := range p.Deps {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}

// activeDeps returns the dependencies of p that the resolver switched on.
func (r *featureResolver) activeDeps(p *Package) []Dependency {
	var out []Dependency
	for _, d := range p.Deps {
		if r.active[p][d.Name] {
			out = append(out, d)
		}
	}
	return out
}
