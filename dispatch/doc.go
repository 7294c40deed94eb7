// Package dispatch implements cost-based multiple dispatch over the
// valence class model.
//
// This package contains:
//   - Multimethods with declared dispatch positions
//   - Class, kind and custom predicates scored by inheritance distance
//   - Nested per-position dispatch caching with hit/miss statistics
package dispatch
