package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/mqtt"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthReporter publishes retained bridge health to rnet/health on a
// ticker and whenever Trigger is called.
//
// Thread Safety: All methods are safe for concurrent use.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	engine    Engine
	zoneCount func() int

	lastError string
	mu        sync.RWMutex

	trigger  chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the subset of the MQTT client used for health.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID  string
	Version   string
	Interval  time.Duration
	Publisher HealthPublisher
	Engine    Engine

	// ZoneCount reports the number of managed zones. Optional.
	ZoneCount func() int
}

// NewHealthReporter creates a health reporter. Call Start to begin.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	zoneCount := cfg.ZoneCount
	if zoneCount == nil {
		zoneCount = func() int { return 0 }
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		engine:    cfg.Engine,
		zoneCount: zoneCount,
		trigger:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		if err := h.publishStatus(HealthStopping, "bridge shutting down"); err != nil {
			h.logError("failed to publish stopping status", err)
		}
	})
}

// Trigger requests an immediate publish without blocking.
func (h *HealthReporter) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// SetLastError records the latest connection error for the degraded reason.
// An empty message clears it.
func (h *HealthReporter) SetLastError(msg string) {
	h.mu.Lock()
	h.lastError = msg
	h.mu.Unlock()
}

// SetLogger sets the logger.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes the "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// LWTPayload returns the Last Will payload for bridgeID.
func LWTPayload(bridgeID string) ([]byte, error) {
	payload, err := json.Marshal(NewLWTMessage(bridgeID))
	if err != nil {
		return nil, fmt.Errorf("marshal LWT: %w", err)
	}
	return payload, nil
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
		case <-h.trigger:
		}
		if err := h.PublishNow(); err != nil {
			h.logError("failed to publish health", err)
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.engine == nil || !h.engine.IsConnected() {
		h.mu.RLock()
		lastErr := h.lastError
		h.mu.RUnlock()
		if lastErr != "" {
			return HealthDegraded, "rnet offline: " + lastErr
		}
		return HealthDegraded, "rnet offline"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		ZonesManaged:  h.zoneCount(),
		Reason:        reason,
	}

	if h.engine != nil {
		stats := h.engine.Stats()
		conn := &ConnectionStatus{
			Status:   stats.State.String(),
			Endpoint: h.engine.Endpoint().String(),
		}
		if !stats.LastActivity.IsZero() && stats.LastActivity.Unix() > 0 {
			last := stats.LastActivity.UTC()
			conn.LastActivity = &last
		}
		msg.Connection = conn
		msg.Statistics = &Statistics{
			FramesReceived:  stats.FramesRx,
			FramesSent:      stats.FramesTx,
			FramesUnmatched: stats.FramesUnmatched,
			Errors:          stats.ErrorsTotal,
		}
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.buildMessage(status, reason))
	if err != nil {
		return fmt.Errorf("marshal health: %w", err)
	}
	return h.publisher.Publish(mqtt.Topics{}.Health(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
