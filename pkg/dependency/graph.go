package dependency

import (
	"container/heap"
	"errors"
	"sort"

	"github.com/goliatone/go-formcalc/pkg/schema"
)

// Graph is the resolved derivation structure of a field set.
type Graph struct {
	ids      []string
	index    map[string]int
	parents  map[string][]string
	children map[string][]string
	unknown  map[string][]string
	cyclic   map[string]bool
	cycles   [][]string
	order    []string
}

// Resolve builds the parent to child graph for fields. Duplicate ids are
// ignored after their first occurrence; schema validation reports them.
func Resolve(fields schema.FieldSet) *Graph {
	g := &Graph{
		index:    make(map[string]int, len(fields)),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
		unknown:  make(map[string][]string),
		cyclic:   make(map[string]bool),
	}

	derived := make([]schema.Field, 0, len(fields))
	for _, f := range fields {
		if _, dup := g.index[f.ID]; dup {
			continue
		}
		g.index[f.ID] = len(g.ids)
		g.ids = append(g.ids, f.ID)
		if f.IsDerived() {
			derived = append(derived, f)
		}
	}

	for _, f := range derived {
		seen := make(map[string]struct{}, len(f.Derived.ParentIDs))
		parents := make([]string, 0, len(f.Derived.ParentIDs))
		for _, parent := range f.Derived.ParentIDs {
			if _, dup := seen[parent]; dup {
				continue
			}
			seen[parent] = struct{}{}
			if _, known := g.index[parent]; !known {
				g.unknown[f.ID] = append(g.unknown[f.ID], parent)
				continue
			}
			parents = append(parents, parent)
			g.children[parent] = append(g.children[parent], f.ID)
		}
		g.parents[f.ID] = parents
	}

	g.markCycles()
	g.order = g.topoOrder()
	return g
}

// Parents returns the declared, known parents of a derived field.
func (g *Graph) Parents(id string) []string {
	return append([]string(nil), g.parents[id]...)
}

// Children returns the derived fields that declare id as a parent.
func (g *Graph) Children(id string) []string {
	return append([]string(nil), g.children[id]...)
}

// IsDerived reports whether id carries a derivation.
func (g *Graph) IsDerived(id string) bool {
	_, ok := g.parents[id]
	return ok
}

// IsCyclic reports whether id takes part in a derivation cycle, including a
// self reference.
func (g *Graph) IsCyclic(id string) bool { return g.cyclic[id] }

// UnknownParents lists parent ids of a derived field that are not in the
// field set.
func (g *Graph) UnknownParents(id string) []string {
	return append([]string(nil), g.unknown[id]...)
}

// Evaluable reports whether a derived field can be computed: it is neither
// cyclic nor referencing unknown fields.
func (g *Graph) Evaluable(id string) bool {
	if !g.IsDerived(id) {
		return false
	}
	return !g.cyclic[id] && len(g.unknown[id]) == 0
}

// Order returns the evaluable derived fields, parents before children. Ties
// are broken by field set position.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Cycles returns each strongly connected component that forms a cycle, with
// members in field set order.
func (g *Graph) Cycles() [][]string {
	out := make([][]string, len(g.cycles))
	for i, c := range g.cycles {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// Acyclic reports whether no derivation cycle was found.
func (g *Graph) Acyclic() bool { return len(g.cycles) == 0 }

// Err joins every structural problem as *GraphError values, or returns nil
// when the graph is sound.
func (g *Graph) Err() error {
	var errs []error
	for _, cycle := range g.cycles {
		errs = append(errs, cycleError(cycle))
	}
	for _, id := range g.ids {
		if parents := g.unknown[id]; len(parents) > 0 {
			errs = append(errs, unknownParentError(id, parents))
		}
	}
	return errors.Join(errs...)
}

// markCycles runs Tarjan's algorithm over every field in declaration order.
func (g *Graph) markCycles() {
	var (
		counter int
		stack   []string
		onStack = make(map[string]bool)
		indexOf = make(map[string]int)
		lowlink = make(map[string]int)
	)

	var connect func(id string)
	connect = func(id string) {
		indexOf[id] = counter
		lowlink[id] = counter
		counter++
		stack = append(stack, id)
		onStack[id] = true

		for _, child := range g.children[id] {
			if _, visited := indexOf[child]; !visited {
				connect(child)
				lowlink[id] = min(lowlink[id], lowlink[child])
			} else if onStack[child] {
				lowlink[id] = min(lowlink[id], indexOf[child])
			}
		}

		if lowlink[id] != indexOf[id] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == id {
				break
			}
		}
		if len(component) > 1 || g.selfLoop(id) {
			sort.Slice(component, func(i, j int) bool {
				return g.index[component[i]] < g.index[component[j]]
			})
			for _, member := range component {
				g.cyclic[member] = true
			}
			g.cycles = append(g.cycles, component)
		}
	}

	for _, id := range g.ids {
		if _, visited := indexOf[id]; !visited {
			connect(id)
		}
	}

	sort.SliceStable(g.cycles, func(i, j int) bool {
		return g.index[g.cycles[i][0]] < g.index[g.cycles[j][0]]
	})
}

func (g *Graph) selfLoop(id string) bool {
	for _, parent := range g.parents[id] {
		if parent == id {
			return true
		}
	}
	return false
}

// topoOrder applies Kahn's algorithm to the evaluable derived fields. Parents
// that are not evaluable derived fields act as sources.
func (g *Graph) topoOrder() []string {
	indeg := make(map[string]int)
	for _, id := range g.ids {
		if !g.Evaluable(id) {
			continue
		}
		indeg[id] = 0
		for _, parent := range g.parents[id] {
			if g.Evaluable(parent) {
				indeg[id]++
			}
		}
	}

	ready := &positionHeap{}
	for id, n := range indeg {
		if n == 0 {
			heap.Push(ready, g.index[id])
		}
	}

	out := make([]string, 0, len(indeg))
	for ready.Len() > 0 {
		id := g.ids[heap.Pop(ready).(int)]
		out = append(out, id)
		for _, child := range g.children[id] {
			if _, tracked := indeg[child]; !tracked {
				continue
			}
			indeg[child]--
			if indeg[child] == 0 {
				heap.Push(ready, g.index[child])
			}
		}
	}
	return out
}

type positionHeap []int

func (h positionHeap) Len() int           { return len(h) }
func (h positionHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h positionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *positionHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *positionHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
