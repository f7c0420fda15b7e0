// Package label provides the label fleet domain model: the in-memory
// registry that is the source of truth for per-label state, the status
// classification rules, and the SQLite-backed catalog that seeds the
// fleet at startup.
//
// # Registry
//
// The Registry maps label IDs to their current state (name, price,
// promotion, battery, freshness, derived status). It is mutated by the
// publish engine (applying updates as the "hardware" receives them) and
// by the battery/freshness simulator (periodic ageing ticks). Reads for
// the HTTP API go through List, Get and GetStats.
//
// # Status classification
//
// A label's status is a pure function of its battery level and how
// recently it was seen: battery below 20 is low_battery (takes
// precedence), a label unseen beyond the staleness window is offline,
// everything else is online. DeriveStatus is applied after every
// mutation so the invariant holds at all times.
//
// # Catalog
//
// The catalog is a bootstrap collaborator only: read once at startup to
// seed the registry, seeded with a default fleet on first run. Runtime
// label state is deliberately not persisted across restarts.
package label
