// Package status is the push notification channel between the core and its
// observers: every connection transition, send outcome and alarm change is
// published as an Event.
//
// Bus fans events out to attached Observers and to channel subscribers.
// Tracker is an Observer keeping a point-in-time Snapshot for the HTTP and
// gRPC status calls.
package status
