package net

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/skshohagmiah/fawldb/internal/protocol"
)

// ErrClosed is returned when using a closed connection or pool
var ErrClosed = errors.New("connection closed")

// Connection is a single TCP connection carrying one request at a time
type Connection struct {
	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
	mu           sync.Mutex
	closed       bool
	lastUsed     time.Time
}

// ConnectionOptions for creating a new connection
type ConnectionOptions struct {
	Address      string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// DefaultConnectionOptions returns default connection options
func DefaultConnectionOptions(address string) *ConnectionOptions {
	return &ConnectionOptions{
		Address:      address,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		BufferSize:   65536, // 64KB
	}
}

// NewConnection dials a new TCP connection
func NewConnection(opts *ConnectionOptions) (*Connection, error) {
	if opts == nil {
		return nil, errors.New("options cannot be nil")
	}

	conn, err := net.DialTimeout("tcp", opts.Address, opts.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}

	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = 65536
	}

	return &Connection{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, bufSize),
		writer:       bufio.NewWriterSize(conn, bufSize),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		lastUsed:     time.Now(),
	}, nil
}

// Do sends one request frame and returns the decoded response. Any I/O
// failure closes the connection so a pool will not hand it out again.
func (c *Connection) Do(frame []byte) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.writer.Write(frame); err != nil {
		return nil, c.fail(err)
	}
	if err := c.writer.Flush(); err != nil {
		return nil, c.fail(err)
	}

	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	data, err := protocol.ReadFrame(c.reader)
	if err != nil {
		return nil, c.fail(err)
	}

	c.lastUsed = time.Now()
	return protocol.DecodeResponse(data)
}

func (c *Connection) fail(err error) error {
	c.closed = true
	c.conn.Close()
	return err
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	return c.conn.Close()
}

// IsConnected checks if the connection is still usable
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// idleSince returns when the connection last completed a request
func (c *Connection) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// RemoteAddr returns the remote address
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
