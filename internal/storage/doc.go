// Package storage is the sqlite persistence layer.
//
// The users table is the single source of truth for access state. Every
// read-then-conditionally-write sequence the access engine and the expiry
// notifier rely on (trial grant, subscription extension, notify-once claim)
// is expressed as one conditional UPDATE so concurrent callers cannot both
// observe the "before" state.
package storage
