// Package event defines the typed event kinds recorded in the cycle log.
//
// Every event belongs to exactly one partition (a simulation cycle) and carries
// a per-partition sequence number assigned by the sequence allocator. Payloads
// form a closed tagged union: each Type has exactly one payload struct, and a
// payload always reports the Type it belongs to.
//
// # Validation
//
// Validate checks three things before an event may consume a sequence number:
//   - the type is known and the payload is present and matches the type
//   - the references required by the type (actor, entity, match) are set
//   - the payload satisfies the constraints declared in schema.cue
//
// Failures are reported as *ValidationError carrying the offending field so
// callers can act without replaying the partition.
//
// # Metadata
//
// Metadata is the one open-ended document on an event. It is canonicalized
// (NFC strings, no floats, no nulls) before storage so lookups by embedded
// identifiers such as legacyMatchId are stable.
package event
