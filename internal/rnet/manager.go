package rnet

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Default manager settings.
const (
	// DefaultRetryDelay is the delay before a reconnect attempt.
	DefaultRetryDelay = 10 * time.Second

	// defaultConnectTimeout bounds a single TCP dial.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout bounds a single TCP write.
	defaultWriteTimeout = 5 * time.Second

	// readBufferSize is the size of the transport read buffer.
	readBufferSize = 256
)

// State is the connection manager's lifecycle state.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateOnline
	StateOfflineRetrying
)

// String returns the state name used in logs and health messages.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	case StateOfflineRetrying:
		return "offline_retrying"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Listener receives decoded updates and connectivity changes.
//
// Callbacks run synchronously on the manager's goroutines and must not
// block on I/O or call Disconnect.
type Listener interface {
	// ZoneStateChanged is called once per decoded frame, in wire order.
	ZoneStateChanged(update ZoneStateUpdate)

	// ConnectionStateChanged reports the manager going online or offline.
	ConnectionStateChanged(online bool)

	// ConnectionError reports a communication problem detail.
	ConnectionError(message string)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ManagerConfig holds connection manager configuration.
type ManagerConfig struct {
	// Connection selects the transport:
	//   - "/tcp/192.168.1.50:9999" (TCP to a serial bridge)
	//   - "/dev/ttyUSB0" (local serial port)
	Connection string

	// RetryDelay is the delay before reconnecting after a failure.
	// Default: 10 seconds.
	RetryDelay time.Duration

	// ConnectTimeout bounds a TCP dial. Default: 10 seconds.
	ConnectTimeout time.Duration

	// WriteTimeout bounds a TCP write. Default: 5 seconds.
	WriteTimeout time.Duration

	// SerialBaud is the serial line rate. Default: 19200.
	SerialBaud int
}

// Stats holds operational statistics.
type Stats struct {
	FramesRx          uint64
	FramesTx          uint64
	BytesRx           uint64
	FramesUnmatched   uint64
	UpdatesDispatched uint64
	ConnectAttempts   uint64
	RetriesScheduled  uint64
	ErrorsTotal       uint64
	LastActivity      time.Time
	State             State
}

// Manager owns the RNet transport. It connects and reconnects, feeds inbound
// bytes through the stream parser and decoders, and sends command frames.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Connection state, the pending retry timer and the transport are guarded
//     by separate locks. Lock order is stateMu, retryMu, transportMu.
//
// Reconnection:
//   - Only a transport failure (connect or read) schedules a retry.
//   - At most one retry is pending at a time.
//   - Disconnect cancels a pending retry and aborts an in-flight dial.
type Manager struct {
	cfg      ManagerConfig
	endpoint Endpoint
	dialer   Dialer

	// stateMu guards state, gen and sessionCancel.
	stateMu       sync.Mutex
	state         State
	gen           uint64
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	// stateView mirrors state for lock-free, possibly stale reads.
	stateView atomic.Int32

	retryMu sync.Mutex
	retry   *time.Timer

	// transportMu guards transport and serialises writes.
	transportMu sync.Mutex
	transport   io.ReadWriteCloser

	listener   Listener
	listenerMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	wg sync.WaitGroup

	framesRx          atomic.Uint64
	framesTx          atomic.Uint64
	bytesRx           atomic.Uint64
	framesUnmatched   atomic.Uint64
	updatesDispatched atomic.Uint64
	connectAttempts   atomic.Uint64
	retriesScheduled  atomic.Uint64
	errorsTotal       atomic.Uint64
	lastActivity      atomic.Int64
}

// NewManager validates the configuration and creates a disconnected manager.
//
// Returns ErrInvalidConnectionString for an empty or malformed connection.
// The listener may be nil and set later with SetListener.
func NewManager(cfg ManagerConfig, listener Listener) (*Manager, error) {
	cfg = applyManagerDefaults(cfg)
	return newManager(cfg, listener, netDialer{
		connectTimeout: cfg.ConnectTimeout,
		writeTimeout:   cfg.WriteTimeout,
		baud:           cfg.SerialBaud,
	})
}

func newManager(cfg ManagerConfig, listener Listener, dialer Dialer) (*Manager, error) {
	cfg = applyManagerDefaults(cfg)

	ep, err := ParseConnectionString(cfg.Connection)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		endpoint: ep,
		dialer:   dialer,
		listener: listener,
	}
	m.stateView.Store(int32(StateDisconnected))
	return m, nil
}

func applyManagerDefaults(cfg ManagerConfig) ManagerConfig {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.SerialBaud <= 0 {
		cfg.SerialBaud = defaultSerialBaud
	}
	return cfg
}

// Endpoint returns the parsed connection endpoint.
func (m *Manager) Endpoint() Endpoint {
	return m.endpoint
}

// Connect attempts to open the transport.
//
// It never returns an error: a failure moves the manager to
// StateOfflineRetrying, is reported to the listener and schedules a retry.
// Calling Connect while connecting or online does nothing. ctx bounds the
// first attempt only; retries run until Disconnect. Disconnect also aborts
// the first attempt.
func (m *Manager) Connect(ctx context.Context) {
	m.stateMu.Lock()
	if m.state == StateConnecting || m.state == StateOnline {
		m.stateMu.Unlock()
		return
	}
	if m.sessionCtx == nil {
		m.sessionCtx, m.sessionCancel = context.WithCancel(context.Background())
	}
	session := m.sessionCtx
	gen := m.gen
	m.setStateLocked(StateConnecting)
	m.stateMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(session, cancel)
	defer stop()

	m.connect(ctx, gen)
}

// connect dials and, on success, starts the read loop for this session.
func (m *Manager) connect(ctx context.Context, gen uint64) {
	m.connectAttempts.Add(1)
	m.logInfo("connecting to rnet", "endpoint", m.endpoint.String())

	t, err := m.dialer.Dial(ctx, m.endpoint)

	m.stateMu.Lock()
	if m.gen != gen {
		// Disconnect ran while dialing.
		m.stateMu.Unlock()
		if t != nil {
			t.Close() //nolint:errcheck // abandoned session
		}
		return
	}

	if err != nil {
		m.setStateLocked(StateOfflineRetrying)
		m.stateMu.Unlock()

		m.errorsTotal.Add(1)
		err = fmt.Errorf("%w: %s: %w", ErrConnectionFailed, m.endpoint, err)
		m.logError("rnet connect failed", err)
		m.notifyConnectionState(false)
		m.notifyError(err.Error())
		m.scheduleRetry(gen)
		return
	}

	m.transportMu.Lock()
	m.transport = t
	m.transportMu.Unlock()
	m.setStateLocked(StateOnline)
	m.lastActivity.Store(time.Now().Unix())

	// A retry armed before this explicit connect is no longer needed.
	m.cancelRetry()

	m.wg.Add(1)
	go m.readLoop(gen, t)
	m.stateMu.Unlock()

	m.logInfo("connected to rnet", "endpoint", m.endpoint.String())
	m.notifyConnectionState(true)
}

// readLoop feeds inbound bytes through a fresh parser until the transport
// fails or is closed.
func (m *Manager) readLoop(gen uint64, t io.ReadWriteCloser) {
	defer m.wg.Done()

	parser := NewStreamParser()
	buf := make([]byte, readBufferSize)

	for {
		n, err := t.Read(buf)
		if n > 0 {
			m.bytesRx.Add(uint64(n)) //nolint:gosec // n is non-negative
			m.lastActivity.Store(time.Now().Unix())
			for _, f := range parser.Feed(buf[:n]) {
				m.dispatch(f)
			}
		}
		if err != nil {
			m.transportLost(gen, t, err)
			return
		}
	}
}

// dispatch decodes one frame and hands any update to the listener.
func (m *Manager) dispatch(f Frame) {
	m.framesRx.Add(1)

	update, kind, ok := Decode(f)
	if !ok {
		m.framesUnmatched.Add(1)
		m.logDebug("unrecognised rnet frame", "frame", f.String())
		return
	}

	m.logDebug("rnet frame decoded", "decoder", kind.String(), "zone", update.Zone.String())

	m.listenerMu.RLock()
	l := m.listener
	m.listenerMu.RUnlock()
	if l != nil {
		m.updatesDispatched.Add(1)
		l.ZoneStateChanged(update)
	}
}

// transportLost handles a read failure for the session identified by gen.
func (m *Manager) transportLost(gen uint64, t io.ReadWriteCloser, cause error) {
	m.stateMu.Lock()
	if m.gen != gen || m.state != StateOnline {
		// Disconnect closed the transport.
		m.stateMu.Unlock()
		return
	}

	m.transportMu.Lock()
	if m.transport == t {
		m.transport = nil
	}
	m.transportMu.Unlock()
	m.setStateLocked(StateOfflineRetrying)
	m.stateMu.Unlock()

	t.Close() //nolint:errcheck // already failed

	m.errorsTotal.Add(1)
	m.logError("rnet connection lost", cause)
	m.notifyConnectionState(false)
	m.notifyError(fmt.Sprintf("connection lost: %v", cause))
	m.scheduleRetry(gen)
}

// scheduleRetry arms the retry timer unless one is already pending.
//
// The timer is armed under stateMu, and only if the session gen is still
// current and offline. A Disconnect that ran after the failure was observed
// therefore leaves no timer behind.
func (m *Manager) scheduleRetry(gen uint64) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.gen != gen || m.state != StateOfflineRetrying {
		return
	}

	m.retryMu.Lock()
	defer m.retryMu.Unlock()

	if m.retry != nil {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(m.cfg.RetryDelay, func() {
		m.retryMu.Lock()
		if m.retry == timer {
			m.retry = nil
		}
		m.retryMu.Unlock()
		m.retryConnect(gen)
	})
	m.retry = timer
	m.retriesScheduled.Add(1)

	m.logInfo("rnet reconnect scheduled", "delay", m.cfg.RetryDelay.String())
}

// cancelRetry stops a pending retry timer, if any.
func (m *Manager) cancelRetry() {
	m.retryMu.Lock()
	defer m.retryMu.Unlock()

	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// retryPending reports whether a retry timer is armed.
func (m *Manager) retryPending() bool {
	m.retryMu.Lock()
	defer m.retryMu.Unlock()
	return m.retry != nil
}

// retryConnect runs when the retry timer fires.
func (m *Manager) retryConnect(gen uint64) {
	m.stateMu.Lock()
	if m.gen != gen || m.state != StateOfflineRetrying {
		m.stateMu.Unlock()
		return
	}
	ctx := m.sessionCtx
	m.setStateLocked(StateConnecting)
	m.stateMu.Unlock()

	m.connect(ctx, gen)
}

// Disconnect cancels any pending retry, closes the transport and moves to
// StateDisconnected. It waits for the read loop to exit.
//
// Safe to call multiple times.
func (m *Manager) Disconnect() error {
	m.stateMu.Lock()
	prev := m.state
	m.gen++
	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCtx, m.sessionCancel = nil, nil
	}

	m.cancelRetry()

	m.transportMu.Lock()
	t := m.transport
	m.transport = nil
	m.transportMu.Unlock()

	m.setStateLocked(StateDisconnected)
	m.stateMu.Unlock()

	var err error
	if t != nil {
		err = t.Close()
	}
	m.wg.Wait()

	if prev != StateDisconnected {
		m.logInfo("rnet disconnected", "previous_state", prev.String())
		m.notifyConnectionState(false)
	}

	if err != nil {
		return fmt.Errorf("closing rnet transport: %w", err)
	}
	return nil
}

// SendCommand writes a finalized frame to the transport.
//
// Returns ErrNotConnected if the manager is not online; the listener is
// told the manager is offline but no state transition or reconnect happens.
// A failed write returns ErrWriteFailed and likewise does not reconnect;
// reconnection is driven only by the read loop observing the failure.
func (m *Manager) SendCommand(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if m.State() != StateOnline {
		m.reportNotConnected()
		return ErrNotConnected
	}

	m.transportMu.Lock()
	t := m.transport
	if t == nil {
		m.transportMu.Unlock()
		m.reportNotConnected()
		return ErrNotConnected
	}
	_, err := t.Write(frame)
	m.transportMu.Unlock()

	if err != nil {
		m.errorsTotal.Add(1)
		m.logError("rnet write failed", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	m.framesTx.Add(1)
	m.lastActivity.Store(time.Now().Unix())
	m.logDebug("rnet frame sent", "frame", Frame(frame).String())
	return nil
}

// SendLogicalCommand encodes, finalizes and sends a command.
func (m *Manager) SendLogicalCommand(ctx context.Context, kind CommandKind, zone ZoneID, value byte) error {
	frame, err := BuildCommand(kind, zone, value)
	if err != nil {
		return err
	}
	return m.SendCommand(ctx, frame)
}

func (m *Manager) reportNotConnected() {
	m.notifyConnectionState(false)
	m.notifyError(ErrNotConnected.Error())
}

// State returns the current state. The value may be stale by the time the
// caller acts on it.
func (m *Manager) State() State {
	return State(m.stateView.Load())
}

// IsConnected returns true if the manager is online.
func (m *Manager) IsConnected() bool {
	return m.State() == StateOnline
}

// HealthCheck returns ErrNotConnected unless the manager is online.
func (m *Manager) HealthCheck(_ context.Context) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Stats returns current operational statistics.
func (m *Manager) Stats() Stats {
	return Stats{
		FramesRx:          m.framesRx.Load(),
		FramesTx:          m.framesTx.Load(),
		BytesRx:           m.bytesRx.Load(),
		FramesUnmatched:   m.framesUnmatched.Load(),
		UpdatesDispatched: m.updatesDispatched.Load(),
		ConnectAttempts:   m.connectAttempts.Load(),
		RetriesScheduled:  m.retriesScheduled.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		LastActivity:      time.Unix(m.lastActivity.Load(), 0),
		State:             m.State(),
	}
}

// SetListener replaces the listener.
func (m *Manager) SetListener(l Listener) {
	m.listenerMu.Lock()
	m.listener = l
	m.listenerMu.Unlock()
}

// SetLogger sets the logger for this manager.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// setStateLocked must be called with stateMu held.
func (m *Manager) setStateLocked(s State) {
	m.state = s
	m.stateView.Store(int32(s))
}

func (m *Manager) notifyConnectionState(online bool) {
	m.listenerMu.RLock()
	l := m.listener
	m.listenerMu.RUnlock()
	if l != nil {
		l.ConnectionStateChanged(online)
	}
}

func (m *Manager) notifyError(msg string) {
	m.listenerMu.RLock()
	l := m.listener
	m.listenerMu.RUnlock()
	if l != nil {
		l.ConnectionError(msg)
	}
}

func (m *Manager) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

func (m *Manager) logDebug(msg string, keysAndValues ...any) {
	if logger := m.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (m *Manager) logInfo(msg string, keysAndValues ...any) {
	if logger := m.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (m *Manager) logError(msg string, err error) {
	if logger := m.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
