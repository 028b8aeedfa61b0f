// Package runtime assembles a reactive graph: the type registry, the
// behaviour registries and managers, and the entity, relation and flow
// managers.
//
// A Runtime starts with the built-in types registered:
//
//   - one component and same-named entity type per logical and arithmetic
//     gate (logical::and, arithmetic::add, ...)
//   - one component and same-named relation type per connector variant
//     (core::connector, core::not_connector, ...), accepting any endpoint
//     entity types
//
// More types are loaded from CUE files with LoadTypes.
//
// With auto-connect enabled (the default) every behaviour of a newly
// created instance is connected before the create call returns. Otherwise
// behaviours stay in Created until ConnectAll.
//
// Transitions are reported to the configured metrics and, when a store is
// configured, journaled in it. Snapshot writes every live instance to the
// store.
package runtime
