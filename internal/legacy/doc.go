// Package legacy converts rows of the pre-event-log legacy_matches table into
// match_completed events.
//
// Everything here is pure: partition assignment buckets records by the UTC
// calendar day they were created on, and conversion maps one record to one
// event. Persistence and idempotency live in the migrate package.
package legacy
