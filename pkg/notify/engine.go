// Package notify owns the polling loop and the edge-triggered notification
// state machine.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"k8s.io/klog/v2"

	"github.com/pipewatch/task-health-monitor/pkg/config"
	"github.com/pipewatch/task-health-monitor/pkg/format"
	"github.com/pipewatch/task-health-monitor/pkg/metrics"
	"github.com/pipewatch/task-health-monitor/pkg/store"
	"github.com/pipewatch/task-health-monitor/pkg/task"
	"github.com/pipewatch/task-health-monitor/pkg/transport"
)

const (
	// notificationKindAlert marks a healthy-to-unhealthy transition.
	notificationKindAlert = "alert"
	// notificationKindRecovery marks an unhealthy-to-healthy transition.
	notificationKindRecovery = "recovery"

	// sendAttempts and sendRetryDelay bound delivery retries per subscriber.
	sendAttempts   = 3
	sendRetryDelay = 2 * time.Second

	// loggedMessageLimit truncates notification text in the log.
	loggedMessageLimit = 500
)

// Engine runs the recurring polling cycle, detects per-task health-state
// transitions and fans out rate-limited notifications to subscribers.
type Engine struct {
	registry *task.Registry
	store    store.Store
	sender   transport.Sender

	interval   time.Duration
	cooldown   time.Duration
	warmup     time.Duration
	retryDelay time.Duration

	// prevHealthy is mutated only by the polling loop. It starts empty on
	// every process start, so the first observation of a task never fires a
	// notification (cold-start suppression).
	prevHealthy map[string]bool

	mu          sync.RWMutex
	lastReports []task.Report

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a notification engine. Sender may be nil when no transport is
// configured; health logging still runs but dispatch is skipped.
func New(registry *task.Registry, st store.Store, sender transport.Sender, cfg config.MonitorConfig) *Engine {
	return &Engine{
		registry:    registry,
		store:       st,
		sender:      sender,
		interval:    cfg.Interval.Std(),
		cooldown:    cfg.Cooldown.Std(),
		warmup:      cfg.WarmupDelay.Std(),
		retryDelay:  sendRetryDelay,
		prevHealthy: make(map[string]bool),
	}
}

// Start spawns the polling loop and returns once scheduling has begun; it
// does not wait for the first cycle.
func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.loop(ctx)
	klog.InfoS("Notification engine started", "interval", e.interval.String(), "cooldown", e.cooldown.String())
}

// Stop cancels the polling loop and waits for the in-flight cycle to settle.
// Safe to call mid-cycle: every persisted record is an independent append,
// so cancellation simply truncates the cycle's remaining work.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	klog.InfoS("Notification engine stopped")
}

// LastReports returns the reports from the most recent completed cycle.
func (e *Engine) LastReports() []task.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastReports
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	// Warm-up delay so the surrounding process finishes initializing
	// before the first cycle.
	select {
	case <-time.After(e.warmup):
	case <-ctx.Done():
		return
	}

	for {
		if err := e.runCycle(ctx); err != nil && ctx.Err() == nil {
			klog.ErrorS(err, "Monitoring cycle failed")
		}
		// Fixed delay between cycles: the effective period is cycle
		// duration plus the interval, not a fixed-rate clock.
		select {
		case <-time.After(e.interval):
		case <-ctx.Done():
			return
		}
	}
}

// runCycle executes all tasks, persists their results, and dispatches
// notifications for tasks whose health flipped since the previous cycle.
func (e *Engine) runCycle(ctx context.Context) error {
	reports := e.registry.RunAll(ctx)

	for _, report := range reports {
		for _, c := range report.Checks {
			metrics.CheckResultCounter.WithLabelValues(report.TaskName, c.Name, string(c.Status)).Inc()
			err := e.store.AppendHealthLog(ctx, store.HealthLogRecord{
				TaskName:       report.TaskName,
				CheckName:      c.Name,
				Status:         string(c.Status),
				Message:        c.Message,
				ResponseTimeMS: c.ResponseTimeMS,
				CheckedAt:      report.Timestamp,
			})
			if err != nil {
				return fmt.Errorf("failed to append health log for %s/%s: %w", report.TaskName, c.Name, err)
			}
		}

		healthValue := 0.0
		if report.Healthy {
			healthValue = 1.0
		}
		metrics.TaskHealthyGauge.WithLabelValues(report.TaskName).Set(healthValue)

		prev, seen := e.prevHealthy[report.TaskName]
		if seen && prev != report.Healthy {
			e.dispatch(ctx, report)
		}
		// Record even the first observation so the next cycle can detect
		// transitions from it.
		e.prevHealthy[report.TaskName] = report.Healthy
	}

	e.mu.Lock()
	e.lastReports = reports
	e.mu.Unlock()
	return nil
}

// dispatch fans out one transition to all enabled subscribers, each guarded
// independently by the cooldown window.
func (e *Engine) dispatch(ctx context.Context, report task.Report) {
	if e.sender == nil {
		klog.V(2).InfoS("No transport configured, skipping dispatch", "task", report.TaskName)
		return
	}

	subscribers, err := e.store.ListEnabledSubscribers(ctx, report.TaskName)
	if err != nil {
		klog.ErrorS(err, "Failed to list subscribers", "task", report.TaskName)
		return
	}
	if len(subscribers) == 0 {
		return
	}

	kind := notificationKindAlert
	text := format.Alert(report)
	if report.Healthy {
		kind = notificationKindRecovery
		text = format.Recovery(report)
	}

	for _, userID := range subscribers {
		inCooldown, err := e.store.IsInCooldown(ctx, userID, report.TaskName, e.cooldown)
		if err != nil {
			klog.ErrorS(err, "Cooldown check failed", "user", userID, "task", report.TaskName)
			continue
		}
		if inCooldown {
			klog.V(2).InfoS("Subscriber in cooldown, skipping", "user", userID, "task", report.TaskName)
			continue
		}

		if err := e.send(ctx, userID, text); err != nil {
			klog.ErrorS(err, "Failed to deliver notification", "user", userID, "task", report.TaskName)
			continue
		}

		err = e.store.AppendNotificationLog(ctx, store.NotificationRecord{
			UserID:   userID,
			TaskName: report.TaskName,
			Status:   kind,
			Message:  truncate(text, loggedMessageLimit),
			SentAt:   time.Now(),
		})
		if err != nil {
			klog.ErrorS(err, "Failed to log notification", "user", userID, "task", report.TaskName)
		}
		metrics.NotificationCounter.WithLabelValues(report.TaskName, kind).Inc()
		klog.InfoS("Sent notification", "kind", kind, "user", userID, "task", report.TaskName)
	}
}

func (e *Engine) send(ctx context.Context, userID int64, text string) error {
	return retry.Do(
		func() error {
			return e.sender.Send(ctx, userID, text)
		},
		retry.Attempts(sendAttempts),
		retry.Delay(e.retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
