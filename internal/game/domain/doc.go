// Package domain defines the Trackstar game entities and their invariants.
//
// Entities are plain structs mutated only by the session orchestrator. All
// constructors accept injected clocks and id generators so tests stay
// deterministic.
package domain
