/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/metrics"
)

// Manager coordinates audit event creation and distribution.
// Emit never blocks; events that do not fit in the queue are dropped and counted.
// A nil *Manager is valid and discards every event.
type Manager struct {
	sink       Sink
	asyncQueue chan *Event
	logger     *zap.Logger
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	now        func() time.Time

	queuedEvents    atomic.Int64
	droppedEvents   atomic.Int64
	processedEvents atomic.Int64

	config ManagerConfig
}

// ManagerConfig configures the audit Manager.
type ManagerConfig struct {
	// QueueSize is the size of the async event queue.
	// Default: 1000
	QueueSize int

	// WorkerCount is the number of async processing workers.
	// Default: 2
	WorkerCount int

	// WriteTimeout is the timeout for writing to sinks.
	// Default: 5s
	WriteTimeout time.Duration
}

// DefaultManagerConfig returns the default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		QueueSize:    1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewManager creates a new audit Manager and starts its workers.
func NewManager(sink Sink, cfg ManagerConfig, logger *zap.Logger) *Manager {
	def := DefaultManagerConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	m := &Manager{
		sink:       sink,
		asyncQueue: make(chan *Event, cfg.QueueSize),
		logger:     logger.Named("audit-manager"),
		config:     cfg,
		now:        time.Now,
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.processQueue(i)
	}

	logger.Info("audit manager started",
		zap.Int("queue_size", cfg.QueueSize),
		zap.Int("workers", cfg.WorkerCount),
		zap.String("sink", sink.Name()))

	return m
}

func (m *Manager) prepare(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityForEventType(event.Type)
	}
}

// Emit sends an audit event asynchronously (non-blocking).
func (m *Manager) Emit(_ context.Context, event *Event) {
	if m == nil || event == nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	m.prepare(event)

	select {
	case m.asyncQueue <- event:
		m.queuedEvents.Add(1)
		metrics.AuditEventsEmitted.WithLabelValues(string(event.Type)).Inc()
	default:
		m.droppedEvents.Add(1)
		metrics.AuditEventsDropped.Inc()
		m.logger.Warn("audit queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
}

// EmitSync writes an audit event directly to the sink.
// Used by the CLI where no worker pool is running for long.
func (m *Manager) EmitSync(ctx context.Context, event *Event) error {
	if m == nil || event == nil {
		return nil
	}
	m.prepare(event)
	return m.sink.Write(ctx, event)
}

// processQueue handles events from the async queue.
func (m *Manager) processQueue(workerID int) {
	defer m.wg.Done()

	for event := range m.asyncQueue {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
		if err := m.sink.Write(ctx, event); err != nil {
			m.logger.Error("failed to write audit event",
				zap.Int("worker", workerID),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			metrics.AuditSinkErrors.WithLabelValues(m.sink.Name(), "write").Inc()
		} else {
			m.processedEvents.Add(1)
		}
		cancel()
	}
}

// Close drains the queue and closes the sink.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.asyncQueue)
	m.mu.Unlock()

	m.wg.Wait()

	m.logger.Info("audit manager stopped",
		zap.Int64("processed", m.processedEvents.Load()),
		zap.Int64("dropped", m.droppedEvents.Load()))

	return m.sink.Close()
}

// Stats returns current audit manager statistics.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		QueuedEvents:    m.queuedEvents.Load(),
		ProcessedEvents: m.processedEvents.Load(),
		DroppedEvents:   m.droppedEvents.Load(),
		QueueLength:     len(m.asyncQueue),
		QueueCapacity:   cap(m.asyncQueue),
	}
}

// ManagerStats contains audit manager statistics.
type ManagerStats struct {
	QueuedEvents    int64
	ProcessedEvents int64
	DroppedEvents   int64
	QueueLength     int
	QueueCapacity   int
}

// --- Helper methods for common events ---

// LoginSucceeded records a successful admin login.
func (m *Manager) LoginSucceeded(ctx context.Context, actor Actor, rc *RequestContext, adminID string) {
	m.Emit(ctx, &Event{
		Type:           EventLoginSuccess,
		Actor:          actor,
		Target:         Target{Kind: "AdminUser", Name: adminID},
		RequestContext: rc,
	})
}

// LoginFailed records a rejected login. reason is an internal classification
// and is never shown to the client.
func (m *Manager) LoginFailed(ctx context.Context, actor Actor, rc *RequestContext, reason string) {
	m.Emit(ctx, &Event{
		Type:           EventLoginFailure,
		Actor:          actor,
		Target:         Target{Kind: "AdminUser"},
		Details:        map[string]interface{}{"reason": reason},
		RequestContext: rc,
	})
}

// SetupSucceeded records the provisioning of an admin account.
func (m *Manager) SetupSucceeded(ctx context.Context, actor Actor, rc *RequestContext, adminID string) {
	m.Emit(ctx, &Event{
		Type:           EventSetupSuccess,
		Actor:          actor,
		Target:         Target{Kind: "AdminUser", Name: adminID},
		RequestContext: rc,
	})
}

// SetupRejected records a refused provisioning attempt.
func (m *Manager) SetupRejected(ctx context.Context, actor Actor, rc *RequestContext, reason string) {
	m.Emit(ctx, &Event{
		Type:           EventSetupReject,
		Actor:          actor,
		Target:         Target{Kind: "AdminUser"},
		Details:        map[string]interface{}{"reason": reason},
		RequestContext: rc,
	})
}

// RateLimited records a request denied by the sliding-window limiter.
func (m *Manager) RateLimited(ctx context.Context, actor Actor, rc *RequestContext, category string) {
	m.Emit(ctx, &Event{
		Type:           EventRateLimited,
		Actor:          actor,
		Target:         Target{Kind: "RateLimitWindow", Name: category},
		RequestContext: rc,
	})
}

// TokenRejected records a missing or invalid bearer token on an admin route.
func (m *Manager) TokenRejected(ctx context.Context, actor Actor, rc *RequestContext, reason string) {
	m.Emit(ctx, &Event{
		Type:           EventTokenRejected,
		Actor:          actor,
		Target:         Target{Kind: "AccessToken"},
		Details:        map[string]interface{}{"reason": reason},
		RequestContext: rc,
	})
}

// AccessDenied records a valid token that lacks the admin role.
func (m *Manager) AccessDenied(ctx context.Context, actor Actor, rc *RequestContext, role string) {
	m.Emit(ctx, &Event{
		Type:           EventAccessDenied,
		Actor:          actor,
		Target:         Target{Kind: "AccessToken"},
		Details:        map[string]interface{}{"role": role},
		RequestContext: rc,
	})
}
