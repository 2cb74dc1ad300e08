package rnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

// tcpPrefix marks a TCP connection string, e.g. "/tcp/192.168.1.50:9999".
const tcpPrefix = "/tcp/"

// Network names an endpoint's transport.
type Network string

// Supported transports.
const (
	NetworkTCP    Network = "tcp"
	NetworkSerial Network = "serial"
)

// Endpoint is a parsed connection string.
type Endpoint struct {
	Network Network

	// Address is "host:port" for TCP or a device path for serial.
	Address string
}

// String returns the endpoint in connection-string form.
func (e Endpoint) String() string {
	if e.Network == NetworkTCP {
		return tcpPrefix + e.Address
	}
	return e.Address
}

// ParseConnectionString selects a transport from a connection string.
//
// Accepts:
//   - "/tcp/<host>:<port>" for a TCP serial bridge
//   - anything else as a serial device path, e.g. "/dev/ttyUSB0"
func ParseConnectionString(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("%w: empty", ErrInvalidConnectionString)
	}

	if !strings.HasPrefix(s, tcpPrefix) {
		return Endpoint{Network: NetworkSerial, Address: s}, nil
	}

	addr := strings.TrimPrefix(s, tcpPrefix)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q: %w", ErrInvalidConnectionString, s, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: %q: missing host", ErrInvalidConnectionString, s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: %q: port must be 1-65535", ErrInvalidConnectionString, s)
	}

	return Endpoint{Network: NetworkTCP, Address: net.JoinHostPort(host, portStr)}, nil
}

// Dialer opens a transport to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (io.ReadWriteCloser, error)
}

// Transport timeouts.
const (
	// defaultSerialBaud is the RNet bus rate.
	defaultSerialBaud = 19200

	// serialReadTimeout bounds a single serial read so Close is noticed.
	serialReadTimeout = 500 * time.Millisecond
)

// netDialer dials TCP endpoints with net.Dialer and serial endpoints with
// tarm/serial.
type netDialer struct {
	connectTimeout time.Duration
	writeTimeout   time.Duration
	baud           int
}

func (d netDialer) Dial(ctx context.Context, ep Endpoint) (io.ReadWriteCloser, error) {
	switch ep.Network {
	case NetworkTCP:
		return d.dialTCP(ctx, ep.Address)
	case NetworkSerial:
		return d.openSerial(ep.Address)
	default:
		return nil, fmt.Errorf("%w: unsupported network %q", ErrInvalidConnectionString, ep.Network)
	}
}

func (d netDialer) dialTCP(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return &tcpTransport{conn: conn, writeTimeout: d.writeTimeout}, nil
}

func (d netDialer) openSerial(device string) (io.ReadWriteCloser, error) {
	baud := d.baud
	if baud == 0 {
		baud = defaultSerialBaud
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: serialReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return &serialTransport{port: port}, nil
}

// tcpTransport applies a write deadline to every write.
type tcpTransport struct {
	conn         net.Conn
	writeTimeout time.Duration
}

func (t *tcpTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *tcpTransport) Write(p []byte) (int, error) {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return 0, fmt.Errorf("set write deadline: %w", err)
		}
	}
	return t.conn.Write(p)
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

// serialTransport hides read timeouts. A timed-out serial read returns no
// data; Read keeps waiting until data arrives or the port is closed.
type serialTransport struct {
	port   *serial.Port
	closed atomic.Bool
}

func (t *serialTransport) Read(p []byte) (int, error) {
	for {
		n, err := t.port.Read(p)
		if n > 0 {
			return n, nil
		}
		if t.closed.Load() {
			return 0, io.EOF
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
	}
}

func (t *serialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *serialTransport) Close() error {
	t.closed.Store(true)
	return t.port.Close()
}
