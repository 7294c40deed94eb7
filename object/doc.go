// Package object implements the valence runtime class model.
//
// This package contains:
//   - Class registry backed by an arena of stable integer ids
//   - Width-first ancestor linearization with inheritance distances
//   - Eagerly flattened member tables updated on every mutation
//   - Fixed operator hook slots (define-once, never inherited)
//   - Object construction, retagging and primitive kind tags
package object
