// Package alarmsync implements the cross-node synchronization protocol.
// One master owns the alarm state machine and the occupant count; slaves
// request transitions (trigger, door events, occupancy deltas) and mirror
// the master's retained broadcasts. Delivery of slave requests is
// best-effort: while the transport is down they are dropped and logged,
// never queued.
//
// The protocol trusts the transport: any node that can publish on the
// trigger topic can sound the alarm. Restrict access at the broker.
package alarmsync
