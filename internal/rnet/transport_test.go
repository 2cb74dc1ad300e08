package rnet

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantNetwork Network
		wantAddress string
		wantErr     bool
	}{
		{
			name:        "tcp with IP",
			input:       "/tcp/192.168.1.50:9999",
			wantNetwork: NetworkTCP,
			wantAddress: "192.168.1.50:9999",
		},
		{
			name:        "tcp with hostname",
			input:       "/tcp/russound.local:4001",
			wantNetwork: NetworkTCP,
			wantAddress: "russound.local:4001",
		},
		{
			name:        "serial device",
			input:       "/dev/ttyUSB0",
			wantNetwork: NetworkSerial,
			wantAddress: "/dev/ttyUSB0",
		},
		{
			name:        "windows serial port",
			input:       "COM3",
			wantNetwork: NetworkSerial,
			wantAddress: "COM3",
		},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace", input: "   ", wantErr: true},
		{name: "tcp missing port", input: "/tcp/192.168.1.50", wantErr: true},
		{name: "tcp missing host", input: "/tcp/:9999", wantErr: true},
		{name: "tcp non-numeric port", input: "/tcp/host:abc", wantErr: true},
		{name: "tcp port out of range", input: "/tcp/host:70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := ParseConnectionString(tt.input)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConnectionString) {
					t.Errorf("ParseConnectionString(%q) error = %v, want ErrInvalidConnectionString", tt.input, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseConnectionString(%q) unexpected error: %v", tt.input, err)
			}
			if ep.Network != tt.wantNetwork {
				t.Errorf("network = %q, want %q", ep.Network, tt.wantNetwork)
			}
			if ep.Address != tt.wantAddress {
				t.Errorf("address = %q, want %q", ep.Address, tt.wantAddress)
			}
			if ep.String() != tt.input {
				t.Errorf("String() = %q, want %q", ep.String(), tt.input)
			}
		})
	}
}

func TestNetDialerTCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- buf[:n]
		conn.Write([]byte{0x01, Terminator}) //nolint:errcheck // test server
	}()

	d := netDialer{connectTimeout: time.Second, writeTimeout: time.Second}
	rw, err := d.Dial(context.Background(), Endpoint{Network: NetworkTCP, Address: listener.Addr().String()})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer rw.Close()

	if _, err := rw.Write([]byte{0xF0, Terminator}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	select {
	case got := <-received:
		if len(got) != 2 || got[0] != 0xF0 {
			t.Errorf("server received % X, want F0 F7", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive write")
	}

	buf := make([]byte, 8)
	n, err := io.ReadAtLeast(rw, buf, 2)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if buf[n-1] != Terminator {
		t.Errorf("read % X, want trailing terminator", buf[:n])
	}
}

func TestNetDialerTCPRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	d := netDialer{connectTimeout: time.Second}
	if _, err := d.Dial(context.Background(), Endpoint{Network: NetworkTCP, Address: addr}); err == nil {
		t.Error("Dial() to closed port expected error, got nil")
	}
}

func TestNetDialerUnsupportedNetwork(t *testing.T) {
	d := netDialer{}
	_, err := d.Dial(context.Background(), Endpoint{Network: "udp", Address: "x"})
	if !errors.Is(err, ErrInvalidConnectionString) {
		t.Errorf("Dial(udp) error = %v, want ErrInvalidConnectionString", err)
	}
}
