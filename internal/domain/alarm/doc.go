// Package alarm contains the core domain types of breakfast-alarm.
//
// It defines the tri-state ConnectionState, the framed Command sent to the
// remote device, the wall-clock TimeOfDay and ScheduledAlarm of the
// scheduler, and the error taxonomy shared by every layer.
package alarm
