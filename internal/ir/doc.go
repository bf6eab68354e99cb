// Package ir provides the in-memory representation shared by every layer of
// nestwrite: decoded request payloads, the static relationship schema, attribute
// values and persist outcomes.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// representation the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Identity is a tagged union: Persisted(key) or Temporary(token), never both
//   - Verb is an explicit enum; defaulting is a pure function (DefaultVerb)
//   - Value is a sealed interface; attribute maps never hold arbitrary Go values
//   - Relationship blocks keep payload order so execution is deterministic
//   - All JSON tags use snake_case except the payload wire keys ("temp-id")
package ir
