package aqualogic

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// Conn wraps the byte stream to the controller, either a local RS-485
// adapter or a network serial bridge.
type Conn struct {
	rw io.ReadWriteCloser
	mu sync.Mutex
}

// Open opens source. A "host:port" source dials TCP, anything else is
// treated as a serial device path.
func Open(source string) (*Conn, error) {
	if isNetworkSource(source) {
		return OpenTCP(source)
	}
	return OpenSerial(source)
}

// OpenSerial opens the serial port at 19200 baud, 8N2.
func OpenSerial(portPath string) (*Conn, error) {
	mode := &serial.Mode{
		BaudRate: 19200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}

	port, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portPath, err)
	}

	log.Info().Str("port", portPath).Msg("Serial port opened")

	return &Conn{rw: port}, nil
}

// OpenTCP connects to a network serial adapter.
func OpenTCP(addr string) (*Conn, error) {
	c, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	log.Info().Str("addr", addr).Msg("Network serial adapter connected")

	return &Conn{rw: c}, nil
}

// NewConn wraps an existing stream, mainly for tests.
func NewConn(rw io.ReadWriteCloser) *Conn {
	return &Conn{rw: rw}
}

// Write sends raw bytes and never interleaves concurrent frames.
func (c *Conn) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rw.Write(data)
}

// Read reads raw bytes.
func (c *Conn) Read(buf []byte) (int, error) {
	return c.rw.Read(buf)
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.rw.Close()
}

func isNetworkSource(source string) bool {
	if strings.HasPrefix(source, "/") {
		return false
	}
	_, port, err := net.SplitHostPort(source)
	return err == nil && port != ""
}
