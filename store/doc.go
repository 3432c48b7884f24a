// Package store provides a type-safe key-value store with per-entry metadata.
//
// The store keeps Go values with their concrete types preserved and lets
// callers attach metadata to any entry: a description, free-form tags and
// typed properties. gowizard uses it for two things:
//
//   - the status board, where every step and the wizard itself are recorded
//     with a status property the host can query for progress UIs
//   - host form data, which declarative validators read when deciding
//     whether a step is complete
//
// Core features include:
//   - Type-safe reads using generics (Get, GetOrDefault)
//   - Metadata for entries including tags and properties
//   - Lookups by tag and by property value
//   - JSON Schema description of stored value types
//   - Thread-safe operations
package store
