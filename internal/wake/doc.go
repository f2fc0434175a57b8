// Package wake bridges armed alarms to whatever wakes the process at the
// fire instant.
//
// A Bridge registers an opaque payload to be delivered at or after an
// instant. TimerBridge does this in-process; external primitives (a systemd
// timer calling "breakfast-alarm wake", for example) deliver the same
// payload through the control API. Either way the payload ends up in
// Adapter.OnWake, which claims the alarm and sends its command.
package wake
