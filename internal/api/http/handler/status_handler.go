package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// StatusResponse is the JSON body of GET /status.
type StatusResponse struct {
	State     string        `json:"state"`
	Target    string        `json:"target"`
	StartTime time.Time     `json:"start_time"`
	Uptime    string        `json:"uptime"`
	Alarm     *AlarmBody    `json:"alarm"`
	LastEvent *EventBody    `json:"last_event,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Counts    status.Counts `json:"counts"`
}

// AlarmBody describes the armed alarm.
type AlarmBody struct {
	ID      string    `json:"id"`
	Command string    `json:"command"`
	FireAt  time.Time `json:"fire_at"`
	In      string    `json:"in"`
}

// EventBody is the last status event.
type EventBody struct {
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message,omitempty"`
	Command   string    `json:"command,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
}

// StatusHandler serves the tracker snapshot.
type StatusHandler struct {
	snapshots Snapshotter
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(snapshots Snapshotter) *StatusHandler {
	return &StatusHandler{
		snapshots: snapshots,
	}
}

// SetupRoutes configures the routes for this handler.
func (h *StatusHandler) SetupRoutes(r *gin.Engine) {
	r.GET("/status", h.getStatus)
}

func (h *StatusHandler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, NewStatusResponse(h.snapshots.Snapshot()))
}

// NewStatusResponse converts a snapshot to its JSON body.
func NewStatusResponse(snap status.Snapshot) StatusResponse {
	resp := StatusResponse{
		State:     snap.State.String(),
		Target:    snap.Target,
		StartTime: snap.StartTime,
		Uptime:    snap.Uptime().Truncate(time.Second).String(),
		LastError: snap.LastError,
		Counts:    snap.Counts,
	}

	if snap.Armed() {
		resp.Alarm = &AlarmBody{
			ID:      snap.ArmedID,
			Command: snap.ArmedCommand,
			FireAt:  snap.ArmedFireAt,
			In:      snap.ArmedFireAt.Sub(snap.Now).Truncate(time.Second).String(),
		}
	}

	if ev := snap.LastEvent; ev.Kind != "" {
		resp.LastEvent = &EventBody{
			Time:      ev.Time,
			Kind:      string(ev.Kind),
			Message:   ev.Message,
			Command:   ev.Command,
			ErrorKind: string(ev.ErrorKind()),
		}
	}

	return resp
}
