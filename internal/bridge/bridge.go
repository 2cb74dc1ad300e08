package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-rnet/internal/audit"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
	"github.com/nerrad567/gray-logic-rnet/internal/zone"
)

// Bridge operation constants.
const (
	// commandTimeout bounds a single command send.
	commandTimeout = 5 * time.Second

	// auditTimeout bounds writing one command log entry.
	auditTimeout = 2 * time.Second

	// refreshTimeout bounds a full zone info sweep.
	refreshTimeout = 60 * time.Second

	// defaultQueryRate is the zone info queries per second during a refresh.
	defaultQueryRate = 5.0

	// commandSourceMQTT is logged for MQTT commands that name no source.
	commandSourceMQTT = "mqtt"

	// actionRefresh and actionReadState are the supported request actions.
	actionRefresh   = "refresh"
	actionReadState = "read_state"
)

// Bridge translates between MQTT and the RNet bus. It implements
// rnet.Listener:
//   - decoded zone updates are merged into a state cache, and changed
//     zones are published retained and persisted
//   - MQTT commands are validated, sent to the bus and acknowledged
//   - refresh requests query zone info at a bounded rate
//
// Listener callbacks only touch memory and wake background goroutines, so
// the engine's read loop is never blocked on MQTT or SQLite.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	opts    Options
	mqtt    MQTTClient
	engine  Engine
	health  *HealthReporter
	limiter *rate.Limiter

	// State cache for change detection; dirty zones await publishing.
	stateCache   map[rnet.ZoneID]zone.State
	dirty        map[rnet.ZoneID]struct{}
	stateCacheMu sync.Mutex

	publishWake chan struct{}
	refreshWake chan struct{}

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the subset of the MQTT client used by the bridge.
// Satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Engine is the RNet side of the bridge. Satisfied by *rnet.Manager.
type Engine interface {
	SendLogicalCommand(ctx context.Context, kind rnet.CommandKind, zone rnet.ZoneID, value byte) error
	IsConnected() bool
	Stats() rnet.Stats
	Endpoint() rnet.Endpoint
}

// ZoneRegistry persists last-known state. Satisfied by *zone.Registry.
type ZoneRegistry interface {
	SetState(ctx context.Context, id rnet.ZoneID, state zone.State) error
	ZoneIDs() []rnet.ZoneID
}

// CommandLog records operator commands. Satisfied by *audit.SQLiteRepository.
type CommandLog interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	BridgeID string
	Version  string

	HealthInterval time.Duration

	// RefreshInterval enables periodic zone info sweeps when positive.
	RefreshInterval time.Duration

	// QueryRate limits zone info queries per second. Default: 5.
	QueryRate float64

	MQTTClient MQTTClient
	Engine     Engine

	// Registry is optional. Without it, refresh uses Zones.
	Registry ZoneRegistry

	// Zones are the configured zones, used for refresh when there is no registry.
	Zones []rnet.ZoneID

	// Metrics is optional.
	Metrics *metrics.BridgeMetrics

	// CommandLog is optional. Commands with a Source are recorded to it.
	CommandLog CommandLog

	Logger Logger
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("rnet engine is required")
	}
	if opts.QueryRate <= 0 {
		opts.QueryRate = defaultQueryRate
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		opts:        opts,
		mqtt:        opts.MQTTClient,
		engine:      opts.Engine,
		limiter:     rate.NewLimiter(rate.Limit(opts.QueryRate), 1),
		stateCache:  make(map[rnet.ZoneID]zone.State),
		dirty:       make(map[rnet.ZoneID]struct{}),
		publishWake: make(chan struct{}, 1),
		refreshWake: make(chan struct{}, 1),
		done:        make(chan struct{}),
		ctx:         ctx,
		ctxCancel:   cancel,
		logger:      opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Engine:    opts.Engine,
		ZoneCount: func() int { return len(b.zoneIDs()) },
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}
	return b, nil
}

// Start subscribes to commands and requests and starts the background loops.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	topics := mqtt.Topics{}
	if err := b.mqtt.Subscribe(topics.AllCommands(), 1, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	if err := b.mqtt.Subscribe(topics.AllRequests(), 1, b.handleRequestMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}

	b.wg.Add(2)
	go b.publishLoop()
	go b.refreshLoop()

	b.health.Start(ctx)
	b.health.Trigger()

	b.logInfo("bridge started", "bridge_id", b.opts.BridgeID, "zones", len(b.zoneIDs()))
	return nil
}

// Stop flushes pending state, stops the loops and publishes "stopping".
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// Health returns the health reporter.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// ZoneStateChanged merges a decoded update into the cache.
func (b *Bridge) ZoneStateChanged(update rnet.ZoneStateUpdate) {
	b.stateCacheMu.Lock()
	next, changed := b.stateCache[update.Zone].Apply(update.Changes, time.Now())
	if changed {
		b.stateCache[update.Zone] = next
		b.dirty[update.Zone] = struct{}{}
	}
	tracked := len(b.stateCache)
	b.stateCacheMu.Unlock()

	if !changed {
		return
	}
	if m := b.opts.Metrics; m != nil {
		m.ZonesTracked.Set(float64(tracked))
	}
	wake(b.publishWake)
}

// ConnectionStateChanged updates health and queries zone info once online.
func (b *Bridge) ConnectionStateChanged(online bool) {
	b.logInfo("rnet connection state changed", "online", online)
	if online {
		b.health.SetLastError("")
		wake(b.refreshWake)
	}
	b.health.Trigger()
}

// ConnectionError records the error for health reporting.
func (b *Bridge) ConnectionError(message string) {
	b.logWarn("rnet connection error", "message", message)
	b.health.SetLastError(message)
	b.health.Trigger()
}

// ZoneState returns the cached state for a zone.
func (b *Bridge) ZoneState(id rnet.ZoneID) (zone.State, bool) {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	s, ok := b.stateCache[id]
	return s.Clone(), ok
}

// Execute sends a validated command to the bus.
//
// Returns ErrStopped after Stop.
func (b *Bridge) Execute(ctx context.Context, cmd Command) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	err := b.engine.SendLogicalCommand(ctx, cmd.Kind, cmd.Zone, cmd.Value)
	b.recordCommand(cmd, err)
	return err
}

// Refresh sends a zone info query to each zone, paced by the query rate.
// Returns the number of queries sent.
func (b *Bridge) Refresh(ctx context.Context, ids []rnet.ZoneID) (int, error) {
	if !b.engine.IsConnected() {
		return 0, rnet.ErrNotConnected
	}
	if m := b.opts.Metrics; m != nil {
		m.Refreshes.Inc()
	}

	sent := 0
	for _, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			return sent, fmt.Errorf("refresh interrupted: %w", err)
		}
		if err := b.Execute(ctx, Command{Kind: rnet.ZoneInfo, Zone: id}); err != nil {
			return sent, fmt.Errorf("query zone %s: %w", id, err)
		}
		sent++
	}
	return sent, nil
}

// zoneIDs returns the zones to refresh.
func (b *Bridge) zoneIDs() []rnet.ZoneID {
	if b.opts.Registry != nil {
		if ids := b.opts.Registry.ZoneIDs(); len(ids) > 0 {
			return ids
		}
	}
	return b.opts.Zones
}

// publishLoop publishes and persists dirty zones until Stop, flushing once more on exit.
func (b *Bridge) publishLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			b.flushDirty()
			return
		case <-b.publishWake:
			b.flushDirty()
		}
	}
}

func (b *Bridge) flushDirty() {
	b.stateCacheMu.Lock()
	if len(b.dirty) == 0 {
		b.stateCacheMu.Unlock()
		return
	}
	ids := make([]rnet.ZoneID, 0, len(b.dirty))
	states := make(map[rnet.ZoneID]zone.State, len(b.dirty))
	for id := range b.dirty {
		ids = append(ids, id)
		states[id] = b.stateCache[id].Clone()
	}
	b.dirty = make(map[rnet.ZoneID]struct{})
	b.stateCacheMu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Controller != ids[j].Controller {
			return ids[i].Controller < ids[j].Controller
		}
		return ids[i].Zone < ids[j].Zone
	})

	for _, id := range ids {
		b.publishState(id, states[id])
	}
}

func (b *Bridge) publishState(id rnet.ZoneID, state zone.State) {
	payload, err := json.Marshal(NewStateMessage(id, state))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	result := "ok"
	if err := b.mqtt.Publish(mqtt.Topics{}.State(id.Controller, id.Zone), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		result = "error"
	}
	if m := b.opts.Metrics; m != nil {
		m.StatePublish.WithLabelValues(result).Inc()
	}

	if b.opts.Registry != nil {
		// Not tied to b.ctx so the final flush on Stop still persists.
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := b.opts.Registry.SetState(ctx, id, state); err != nil {
			b.logDebug("registry state update skipped", "zone", id.String(), "reason", err.Error())
		}
	}
}

// refreshLoop runs zone info sweeps when woken and on the refresh interval.
func (b *Bridge) refreshLoop() {
	defer b.wg.Done()

	var tick <-chan time.Time
	if b.opts.RefreshInterval > 0 {
		ticker := time.NewTicker(b.opts.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-b.done:
			return
		case <-b.refreshWake:
		case <-tick:
		}
		b.refreshAll()
	}
}

func (b *Bridge) refreshAll() {
	ctx, cancel := context.WithTimeout(b.ctx, refreshTimeout)
	defer cancel()

	sent, err := b.Refresh(ctx, b.zoneIDs())
	if err != nil {
		if !errors.Is(err, rnet.ErrNotConnected) {
			b.logWarn("zone refresh incomplete", "sent", sent, "error", err)
		}
		return
	}
	b.logDebug("zone refresh complete", "queries", sent)
}

// handleCommandMessage processes rnet/command/<controller>/<zone>.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if controller, zoneNum, ok := mqtt.ParseZoneTopic(topic); ok {
		if msg.Controller == 0 {
			msg.Controller = controller
		}
		if msg.Zone == 0 {
			msg.Zone = zoneNum
		}
	}

	b.logInfo("received command",
		"command_id", msg.ID,
		"zone", fmt.Sprintf("%d:%d", msg.Controller, msg.Zone),
		"command", msg.Command)

	cmd, err := ResolveCommand(msg.Command, msg.Controller, msg.Zone, msg.Value)
	if err != nil {
		code := ErrCodeInvalidParameters
		if errors.Is(err, ErrInvalidCommand) {
			code = ErrCodeInvalidCommand
		}
		b.publishAck(NewAckError(msg, code, err.Error()))
		return nil
	}

	cmd.ID = msg.ID
	cmd.Source = commandSourceMQTT
	if msg.Source != "" {
		cmd.Source = msg.Source
	}
	if err := b.Execute(b.ctx, cmd); err != nil {
		code, text := classifySendError(err)
		b.publishAck(NewAckError(msg, code, text))
		return nil
	}
	b.publishAck(NewAckMessage(msg, AckAccepted))
	return nil
}

// classifySendError maps an engine error to an ack error code.
func classifySendError(err error) (code, message string) {
	switch {
	case errors.Is(err, rnet.ErrNotConnected):
		return ErrCodeDeviceUnreachable, "rnet not connected"
	case errors.Is(err, ErrStopped):
		return ErrCodeBridgeError, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout, err.Error()
	case errors.Is(err, rnet.ErrWriteFailed):
		return ErrCodeDeviceUnreachable, err.Error()
	default:
		return ErrCodeProtocolError, err.Error()
	}
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.Ack(ack.Controller, ack.Zone), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
	if ack.Error != nil {
		b.logWarn("command failed", "command_id", ack.CommandID, "code", ack.Error.Code, "message", ack.Error.Message)
	}
}

// handleRequestMessage processes rnet/request/<id>.
func (b *Bridge) handleRequestMessage(topic string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	if req.RequestID == "" {
		id, ok := mqtt.ParseRequestTopic(topic)
		if !ok {
			id = uuid.NewString()
		}
		req.RequestID = id
	}

	b.logInfo("received request", "request_id", req.RequestID, "action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case actionRefresh:
		resp = b.handleRefresh(req)
	case actionReadState:
		resp = b.handleReadState(req)
	default:
		resp = errorResponse(req.RequestID, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.Response(req.RequestID), respPayload, 1, false); err != nil {
		return fmt.Errorf("publish response: %w", err)
	}
	return nil
}

// requestZones returns the single zone named by req, or every zone.
func (b *Bridge) requestZones(req RequestMessage) ([]rnet.ZoneID, error) {
	if req.Controller == 0 && req.Zone == 0 {
		return b.zoneIDs(), nil
	}
	id, err := rnet.NewZoneID(req.Controller, req.Zone)
	if err != nil {
		return nil, err
	}
	return []rnet.ZoneID{id}, nil
}

func (b *Bridge) handleRefresh(req RequestMessage) ResponseMessage {
	ids, err := b.requestZones(req)
	if err != nil {
		return errorResponse(req.RequestID, ErrCodeInvalidParameters, err.Error())
	}

	ctx, cancel := context.WithTimeout(b.ctx, refreshTimeout)
	defer cancel()

	sent, err := b.Refresh(ctx, ids)
	if err != nil {
		code, text := classifySendError(err)
		resp := errorResponse(req.RequestID, code, text)
		resp.Data = map[string]any{"queries_sent": sent}
		return resp
	}
	return successResponse(req.RequestID, map[string]any{
		"queries_sent": sent,
		"message":      "zone info requested, state updates will follow",
	})
}

func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	ids, err := b.requestZones(req)
	if err != nil {
		return errorResponse(req.RequestID, ErrCodeInvalidParameters, err.Error())
	}

	zones := make(map[string]any, len(ids))
	for _, id := range ids {
		if state, ok := b.ZoneState(id); ok {
			zones[id.String()] = state
		}
	}
	return successResponse(req.RequestID, map[string]any{"zones": zones})
}

// commandResult maps a send error to a command log and metrics result.
func commandResult(err error) string {
	switch {
	case err == nil:
		return audit.ResultOK
	case errors.Is(err, rnet.ErrNotConnected):
		return audit.ResultUnreachable
	default:
		return audit.ResultError
	}
}

func (b *Bridge) recordCommand(cmd Command, err error) {
	result := commandResult(err)
	if m := b.opts.Metrics; m != nil {
		m.Commands.WithLabelValues(cmd.Kind.String(), result).Inc()
	}

	if b.opts.CommandLog == nil || cmd.Source == "" {
		return
	}
	name := cmd.Name
	if name == "" {
		name = cmd.Kind.String()
	}
	entry := audit.Entry{
		CommandID:  cmd.ID,
		Command:    name,
		Controller: cmd.Zone.Controller,
		Zone:       cmd.Zone.Zone,
		Value:      int(cmd.Value),
		Source:     cmd.Source,
		Result:     result,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	// Detached from the caller so a cancelled request is still recorded.
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if logErr := b.opts.CommandLog.Create(ctx, &entry); logErr != nil {
		b.logError("failed to record command", logErr)
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, args...)
	}
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// wake signals ch without blocking.
func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
