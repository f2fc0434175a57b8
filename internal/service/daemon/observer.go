package daemon

import (
	"context"

	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// newLogObserver logs every status event. Failures are logged as warnings.
func newLogObserver(ctx context.Context) status.Observer {
	ctx = logger.WithName(ctx, "status")

	return status.ObserverFunc(func(ev status.Event) {
		kvs := []any{"kind", ev.Kind, "state", ev.State.String()}

		if ev.Command != "" {
			kvs = append(kvs, "command", ev.Command)
		}

		if ev.AlarmID != "" {
			kvs = append(kvs, "alarm_id", ev.AlarmID, "fire_at", ev.FireAt)
		}

		if ev.Err != nil {
			kvs = append(kvs, "error_kind", ev.ErrorKind(), "error", ev.Err)
			logger.WarnKV(ctx, ev.Message, kvs...)

			return
		}

		logger.InfoKV(ctx, ev.Message, kvs...)
	})
}
