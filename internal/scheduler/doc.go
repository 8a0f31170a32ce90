// Package scheduler owns the per-user recurring reminder triggers.
//
// # Registry
//
// Triggers are keyed by (user, kind). Reschedule recomputes, from persisted
// state only, whether a user's triggers should exist and replaces the whole
// set under one critical section: a concurrent firing observes either the
// fully-old or the fully-new set, never a mix. Calling Reschedule N times in
// a row leaves exactly one trigger per kind.
//
// The registry is never the source of truth for access. Each firing
// re-evaluates the persisted user row before acting, because trial or
// subscription expiry can land between installation and firing with no
// intervening reschedule.
//
// # Timers
//
// Each trigger is a one-shot timer re-armed after every firing from the
// explicit schedule.NextFire contract, so DST behavior is ours, not a timer
// library's. Installations carry a generation counter; callbacks from timers
// that were since replaced or cancelled see a stale generation and return.
//
// # Housekeeping
//
// A cron schedule sweeps all currently scheduled users and routes the ones
// whose access lapsed through the expiry dispatcher, so teardown does not
// have to wait for the next 08/12/20h tick. Correctness never depends on the
// sweep; it only tightens latency.
package scheduler
