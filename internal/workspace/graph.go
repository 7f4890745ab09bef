package workspace

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
	"github.com/jward/cratescope/internal/store"
)

// crateNode is one crate of the load before it is written to the store.
type crateNode struct {
	key     string
	pkg     *Package
	target  Target
	ordinal int
	files   []string
	deps    []crateEdge
}

// crateEdge points at a crate this one depends on.
type crateEdge struct {
	dep  *crateNode
	name string
}

func nodeKey(p *Package, t Target) string {
	return p.Dir + "\x00" + t.Kind + "\x00" + t.Name
}

// orderCrates builds the crate dependency graph and returns the crates in a
// stable topological order, dependencies first. Ties are broken by package
// name, target kind and target name so the order does not depend on map
// iteration or directory listing.
func orderCrates(pkgs []*Package, r *featureResolver) ([]*crateNode, error) {
	g := graph.New(func(n *crateNode) string { return n.key }, graph.Directed(), graph.PreventCycles())

	nodes := map[string]*crateNode{}
	libs := map[string]*crateNode{} // package name -> lib crate
	for _, p := range pkgs {
		for _, t := range p.Targets {
			n := &crateNode{key: nodeKey(p, t), pkg: p, target: t}
			nodes[n.key] = n
			if err := g.AddVertex(n); err != nil {
				return nil, fmt.Errorf("add crate %s: %w", n.key, err)
			}
			if t.Kind == store.KindLib || t.Kind == store.KindProcMacro {
				libs[p.Name] = n
			}
		}
	}

	// Edges run from a dependency to its dependent.
	addEdge := func(from, to *crateNode, name string) error {
		err := g.AddEdge(from.key, to.key)
		if errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil
		}
		if errors.Is(err, graph.ErrEdgeCreatesCycle) {
			return fmt.Errorf("dependency cycle: %s %s -> %s %s", from.pkg.Name, from.target.Name, to.pkg.Name, to.target.Name)
		}
		if err != nil {
			return err
		}
		to.deps = append(to.deps, crateEdge{dep: from, name: name})
		return nil
	}

	for _, p := range pkgs {
		own := libs[p.Name]
		for _, t := range p.Targets {
			if t.Kind == store.KindBuild {
				continue
			}
			n := nodes[nodeKey(p, t)]
			if own != nil && own != n {
				if err := addEdge(own, n, own.target.Name); err != nil {
					return nil, err
				}
			}
			for _, d := range r.activeDeps(p) {
				dep, ok := libs[d.Package]
				if !ok || dep.pkg == p {
					continue
				}
				if err := addEdge(dep, n, crateName(d.Name)); err != nil {
					return nil, err
				}
			}
		}
	}

	keys, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return crateLess(nodes[a], nodes[b])
	})
	if err != nil {
		return nil, fmt.Errorf("order crates: %w", err)
	}
	ordered := make([]*crateNode, len(keys))
	for i, k := range keys {
		nodes[k].ordinal = i
		ordered[i] = nodes[k]
	}
	return ordered, nil
}

func crateLess(a, b *crateNode) bool {
	if a.pkg.Name != b.pkg.Name {
		return a.pkg.Name < b.pkg.Name
	}
	if a.pkg.Dir != b.pkg.Dir {
		return a.pkg.Dir < b.pkg.Dir
	}
	if kindOrder[a.target.Kind] != kindOrder[b.target.Kind] {
		return kindOrder[a.target.Kind] < kindOrder[b.target.Kind]
	}
	return a.target.Name < b.target.Name
}
