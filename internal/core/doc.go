// Package core provides the purchase-order ingestion pipeline and the
// services built on top of the stored data.
//
// The package holds all domain logic independent of any UI or transport
// layer. Web handlers, the command line and tests drive it the same way.
//
// # Ingestion Workflow
//
// An upload is processed one explicit command at a time. [Step] takes the
// current [State] and a [Command] and returns the next state:
//
//	idle -> file-loaded -> columns-validated -> types-validated
//	     -> ready-to-write -> writing -> completed
//
// Any stage may move to failed. A command issued from the wrong stage returns
// [ErrInvalidTransition] and leaves the state unchanged. Mapping that cannot
// resolve every natural key keeps the run in types-validated with warnings so
// the reference data can be fixed and mapping retried.
//
// # Reference Resolution
//
// Uploads carry natural keys (product code, supplier tax id, cost center
// code). [LoadReferences] fetches the reference tables and [MapReferences]
// replaces the keys with surrogate ids. Misses become warnings, never errors.
//
// # Writing
//
// [WriteRows] upserts eligible rows in order on the business code and stops
// at the first failure. Rows written before the failure stay written. The
// [Service] bounds concurrent write loops with a [WriteLimiter].
//
// # Sessions
//
// Run state lives in a [SessionStore]: in memory for a single instance or in
// Redis when runs must survive a restart or move between instances.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each error category has a code for support reference:
//
//   - VAL001-VAL003: Validation errors (missing columns, coercion, requests)
//   - FILE001-FILE004: File errors (format, size, empty, no rows)
//   - REF001-REF002: Reference errors (unresolved rows, unknown table)
//   - STORE001-STORE005: Store errors (duplicates, constraints, connection)
//   - WF001-WF002: Workflow errors (wrong stage, aborted write)
//   - UPL001-UPL005: Session errors (not found, busy, cancelled, timeout)
package core
