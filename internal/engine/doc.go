// Package engine executes a classified operation graph against a storage
// engine inside one transaction.
//
// The pieces, leaf to root:
//
//   - Plan checks the graph before any I/O: it bounds the node count and
//     rejects true dependency cycles between rows that do not exist yet.
//   - The executor walks the graph depth-first from the root. A node's
//     to-one-owning targets are resolved before its own write; owned
//     targets are written after it with its key injected; to-many-through
//     relations are reconciled once both endpoints have keys.
//   - Reconcile diffs the join rows named in the payload against the rows
//     already stored and issues only the inserts and deletes needed.
//   - Persister brackets the walk in one transaction. Any validation
//     failure rolls back every write of the request.
//   - Assemble reports the root's final state and the nodes that were
//     created or updated.
//
// WRITE ORDERING:
//
// Every storage call is stamped from a logical clock and recorded in the
// execution's WriteLog. The walk is a strict sequence; nodes are never
// written concurrently because later writes consume keys produced by
// earlier ones.
package engine
