package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/api/grpc/control"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// formatAlarm renders an armed alarm relative to now.
func formatAlarm(a *control.Alarm, now time.Time) string {
	if a == nil {
		return "no alarm armed"
	}

	return fmt.Sprintf("alarm %s armed: %q at %s (in %s)",
		a.ID, a.Command, a.FireAt.Local().Format(time.DateTime), a.Delay(now).Truncate(time.Second))
}

// formatEvent renders one status event as a log line.
func formatEvent(ev status.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %-12s %s", ev.Time.Local().Format(time.TimeOnly), ev.Kind, ev.State)

	if ev.Command != "" {
		fmt.Fprintf(&b, " %q", ev.Command)
	}

	if ev.Message != "" {
		fmt.Fprintf(&b, " %s", ev.Message)
	}

	if ev.Err != nil {
		fmt.Fprintf(&b, " [%s] %v", ev.ErrorKind(), ev.Err)
	}

	return b.String()
}

// formatSnapshot renders the status report.
func formatSnapshot(snap status.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "link:    %s", snap.State)

	if snap.Target != "" {
		fmt.Fprintf(&b, " (%s)", snap.Target)
	}

	b.WriteString("\n")

	if snap.Armed() {
		fmt.Fprintf(&b, "alarm:   %q at %s (in %s)\n",
			snap.ArmedCommand,
			snap.ArmedFireAt.Local().Format(time.DateTime),
			snap.ArmedFireAt.Sub(snap.Now).Truncate(time.Second))
	} else {
		b.WriteString("alarm:   none\n")
	}

	fmt.Fprintf(&b, "sent:    %d, rejected: %d, failed: %d, fired: %d\n",
		snap.Counts.Sent, snap.Counts.Rejected, snap.Counts.Failed, snap.Counts.Fired)

	if snap.LastError != "" {
		fmt.Fprintf(&b, "error:   %s\n", snap.LastError)
	}

	if !snap.StartTime.IsZero() {
		fmt.Fprintf(&b, "uptime:  %s\n", snap.Uptime().Truncate(time.Second))
	}

	return b.String()
}
