// Package state defines the persistence contract for customization
// documents: one raw JSON document per (scope, domain) reference.
//
// Responsibilities:
//   - Store only loads/saves a single document for a single Ref. It never
//     interprets the payload; migration and validation live in the dashprefs
//     package.
//   - Save is "last write wins". Meta.ETag is recorded for callers that want
//     optimistic checks but stores do not enforce it.
//   - A Store that cannot reach its backing storage returns an error wrapping
//     ErrUnavailable so callers can degrade instead of failing.
//
// Deterministic keys:
//
//	Ref.Identifier() renders "<scope>/<domain>", e.g. "dashboard-home/dashboard".
package state
