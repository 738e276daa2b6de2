package job

import (
	"context"
	"log"
	"time"

	"yieldpilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollInterval = 2 * time.Minute
	inFlightBatchSize   = 50
)

type InFlightLister interface {
	ListInFlight(ctx context.Context, limit int) ([]domain.RebalanceHistoryEntry, error)
}

type OrderMonitor interface {
	MonitorShiftOrder(ctx context.Context, shiftID string) (string, error)
}

type SettlementNotifier interface {
	NotifySettled(entry domain.RebalanceHistoryEntry)
}

// ShiftMonitor periodically refreshes in-flight swap orders so executed
// recommendations move to completed once the gateway settles them.
type ShiftMonitor struct {
	tracer    trace.Tracer
	history   InFlightLister
	rebalance OrderMonitor
	notifier  SettlementNotifier
	interval  time.Duration
}

func NewShiftMonitor(tracer trace.Tracer, history InFlightLister, rebalance OrderMonitor, notifier SettlementNotifier, interval time.Duration) *ShiftMonitor {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &ShiftMonitor{
		tracer:    tracer,
		history:   history,
		rebalance: rebalance,
		notifier:  notifier,
		interval:  interval,
	}
}

// Start blocks until ctx is cancelled, polling once per interval.
func (m *ShiftMonitor) Start(ctx context.Context) {
	if m.history == nil || m.rebalance == nil {
		log.Println("Shift monitor disabled: missing dependencies")
		<-ctx.Done()
		return
	}

	log.Println("Shift monitor starting...")
	m.RunOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Shift monitor stopped")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes every in-flight order. Per-order failures are logged and
// never stop the sweep.
func (m *ShiftMonitor) RunOnce(ctx context.Context) {
	ctx, span := m.tracer.Start(ctx, "shift-monitor.run-once")
	defer span.End()

	entries, err := m.history.ListInFlight(ctx, inFlightBatchSize)
	if err != nil {
		log.Printf("shift monitor: list in-flight orders: %v", err)
		return
	}

	for _, entry := range entries {
		status, err := m.rebalance.MonitorShiftOrder(ctx, entry.ShiftID)
		if err != nil {
			log.Printf("shift monitor: refresh shift %s: %v", entry.ShiftID, err)
			continue
		}
		if status == domain.ShiftStatusSettled && entry.Status != domain.ShiftStatusSettled && m.notifier != nil {
			entry.Status = status
			m.notifier.NotifySettled(entry)
		}
	}
}
