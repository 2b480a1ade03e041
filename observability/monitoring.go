package observability

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of the hub's delivery counters.
type Stats struct {
	Delivered       uint64 `json:"delivered"`
	Dropped         uint64 `json:"dropped"`
	DeliveryMisses  uint64 `json:"delivery_misses"`
	PersistFailures uint64 `json:"persist_failures"`
	EventsAccepted  uint64 `json:"events_accepted"`
	EventsRejected  uint64 `json:"events_rejected"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}

// Monitor aggregates delivery telemetry with atomic counters. It is the
// only observability surface the hub exposes; durability outcomes are
// counted here instead of blocking or failing delivery.
type Monitor struct {
	delivered       uint64
	dropped         uint64
	deliveryMisses  uint64
	persistFailures uint64
	eventsAccepted  uint64
	eventsRejected  uint64
	startedAt       time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{startedAt: time.Now()}
}

func (m *Monitor) IncrDelivered()      { atomic.AddUint64(&m.delivered, 1) }
func (m *Monitor) IncrDropped()        { atomic.AddUint64(&m.dropped, 1) }
func (m *Monitor) IncrDeliveryMiss()   { atomic.AddUint64(&m.deliveryMisses, 1) }
func (m *Monitor) IncrPersistFailure() { atomic.AddUint64(&m.persistFailures, 1) }
func (m *Monitor) IncrEventAccepted()  { atomic.AddUint64(&m.eventsAccepted, 1) }
func (m *Monitor) IncrEventRejected()  { atomic.AddUint64(&m.eventsRejected, 1) }

func (m *Monitor) Snapshot() Stats {
	return Stats{
		Delivered:       atomic.LoadUint64(&m.delivered),
		Dropped:         atomic.LoadUint64(&m.dropped),
		DeliveryMisses:  atomic.LoadUint64(&m.deliveryMisses),
		PersistFailures: atomic.LoadUint64(&m.persistFailures),
		EventsAccepted:  atomic.LoadUint64(&m.eventsAccepted),
		EventsRejected:  atomic.LoadUint64(&m.eventsRejected),
		UptimeSeconds:   int64(time.Since(m.startedAt).Seconds()),
	}
}
