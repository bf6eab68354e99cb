// Package graph turns a persist payload into an operation graph and
// annotates its edges from the relationship schema.
//
// Build resolves temp-ids and persisted references against the included
// fragments and produces an arena of nodes addressed by Handle. Edges are
// handle pairs, so mutual references never form ownership cycles. Every
// node is created once no matter how many edges reference it.
//
// Classify looks up each edge's cardinality in an ir.Registry and resolves
// polymorphic targets to their concrete entity type. Neither step performs
// storage I/O.
package graph
