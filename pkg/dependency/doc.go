// Package dependency analyses the derivation graph of a field set. Resolve
// classifies cyclic fields with Tarjan's strongly connected components and
// orders the remaining derived fields parents-first with Kahn's algorithm.
// The analysis is a pure function of the field set's shape.
package dependency
