// Package metrics exports status events as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

const namespace = "breakfast_alarm"

// Collector is a status.Observer maintaining Prometheus metrics.
type Collector struct {
	linkState      *prometheus.GaugeVec
	sends          *prometheus.CounterVec
	alarmEvents    *prometheus.CounterVec
	connectLatency prometheus.Histogram
	armed          prometheus.Gauge
	nextFire       prometheus.Gauge
	received       prometheus.Counter

	connectingSince time.Time
}

// New creates a collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		linkState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "link_state",
				Help:      "Current connection state of the device link (1=active, 0=inactive)",
			},
			[]string{"state"},
		),
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_total",
				Help:      "Command send outcomes",
			},
			[]string{"outcome", "error_kind"},
		),
		alarmEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alarm_events_total",
				Help:      "Alarm lifecycle events",
			},
			[]string{"event"},
		),
		connectLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connect_duration_seconds",
				Help:      "Duration of connect attempts, successful or not",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
			},
		),
		armed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_armed",
			Help:      "Whether an alarm is armed (1) or not (0)",
		}),
		nextFire: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_next_fire_timestamp_seconds",
			Help:      "Unix time the armed alarm fires at, 0 when none is armed",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_messages_total",
			Help:      "Inbound messages from the device",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.linkState, c.sends, c.alarmEvents, c.connectLatency, c.armed, c.nextFire, c.received,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	c.setState(alarm.Disconnected)

	return c, nil
}

// Notify implements status.Observer. It is called by the status bus, which
// serializes deliveries.
func (c *Collector) Notify(ev status.Event) {
	switch ev.Kind {
	case status.KindConnecting:
		c.connectingSince = ev.Time
		c.setState(ev.State)
	case status.KindConnected, status.KindDisconnected:
		if !c.connectingSince.IsZero() {
			c.connectLatency.Observe(ev.Time.Sub(c.connectingSince).Seconds())
			c.connectingSince = time.Time{}
		}

		c.setState(ev.State)
	case status.KindSent, status.KindRejected, status.KindFailed:
		c.sends.WithLabelValues(string(ev.Kind), string(ev.ErrorKind())).Inc()
	case status.KindScheduled:
		c.alarmEvents.WithLabelValues(string(ev.Kind)).Inc()
		c.armed.Set(1)
		c.nextFire.Set(float64(ev.FireAt.Unix()))
	case status.KindCancelled, status.KindFired, status.KindMissed:
		c.alarmEvents.WithLabelValues(string(ev.Kind)).Inc()
		c.armed.Set(0)
		c.nextFire.Set(0)
	case status.KindReceived:
		c.received.Inc()
	case status.KindAttempted:
	}
}

func (c *Collector) setState(current alarm.ConnectionState) {
	for _, s := range []alarm.ConnectionState{alarm.Disconnected, alarm.Connecting, alarm.Connected} {
		c.linkState.WithLabelValues(s.String()).Set(0)
	}

	c.linkState.WithLabelValues(current.String()).Set(1)
}
