package net

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ConnectionPool manages a pool of connections
type ConnectionPool struct {
	opts        *ConnectionOptions
	conns       chan *Connection
	mu          sync.Mutex
	closed      bool
	activeCount int
	minSize     int
	maxSize     int
	maxIdleTime time.Duration
}

// PoolOptions for creating a connection pool
type PoolOptions struct {
	Address      string
	MinSize      int
	MaxSize      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxIdleTime  time.Duration
	BufferSize   int
}

// DefaultPoolOptions returns default pool options
func DefaultPoolOptions(address string) *PoolOptions {
	return &PoolOptions{
		Address:      address,
		MinSize:      1,
		MaxSize:      16,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxIdleTime:  5 * time.Minute,
		BufferSize:   65536,
	}
}

// NewConnectionPool creates a pool and dials MinSize connections up front
func NewConnectionPool(opts *PoolOptions) (*ConnectionPool, error) {
	if opts == nil {
		return nil, errors.New("options cannot be nil")
	}

	if opts.MinSize < 0 || opts.MaxSize <= 0 || opts.MaxSize < opts.MinSize {
		return nil, errors.New("invalid pool size configuration")
	}

	pool := &ConnectionPool{
		opts: &ConnectionOptions{
			Address:      opts.Address,
			DialTimeout:  opts.DialTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			BufferSize:   opts.BufferSize,
		},
		conns:       make(chan *Connection, opts.MaxSize),
		minSize:     opts.MinSize,
		maxSize:     opts.MaxSize,
		maxIdleTime: opts.MaxIdleTime,
	}

	for i := 0; i < opts.MinSize; i++ {
		conn, err := NewConnection(pool.opts)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create initial connection: %w", err)
		}
		pool.conns <- conn
		pool.activeCount++
	}

	return pool, nil
}

// Get retrieves a usable connection, dialing a new one while under MaxSize
// and waiting for a returned one otherwise.
func (p *ConnectionPool) Get() (*Connection, error) {
	for {
		select {
		case conn, ok := <-p.conns:
			if !ok {
				return nil, ErrClosed
			}
			if p.usable(conn) {
				return conn, nil
			}
			p.discard(conn)
			continue
		default:
		}

		conn, wait, err := p.dial()
		if !wait {
			return conn, err
		}

		// At max capacity, wait for an available connection
		conn, ok := <-p.conns
		if !ok {
			return nil, ErrClosed
		}
		if p.usable(conn) {
			return conn, nil
		}
		p.discard(conn)
	}
}

// dial opens a new connection if the pool has room. wait is true when the
// pool is full and the caller should block for a returned connection.
func (p *ConnectionPool) dial() (conn *Connection, wait bool, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, false, ErrClosed
	}
	if p.activeCount >= p.maxSize {
		p.mu.Unlock()
		return nil, true, nil
	}
	p.activeCount++
	p.mu.Unlock()

	conn, err = NewConnection(p.opts)
	if err != nil {
		p.mu.Lock()
		p.activeCount--
		p.mu.Unlock()
		return nil, false, err
	}
	return conn, false, nil
}

func (p *ConnectionPool) usable(conn *Connection) bool {
	if !conn.IsConnected() {
		return false
	}
	return p.maxIdleTime <= 0 || time.Since(conn.idleSince()) < p.maxIdleTime
}

func (p *ConnectionPool) discard(conn *Connection) {
	conn.Close()
	p.mu.Lock()
	p.activeCount--
	p.mu.Unlock()
}

// Put returns a connection to the pool
func (p *ConnectionPool) Put(conn *Connection) {
	if conn == nil {
		return
	}

	if !conn.IsConnected() {
		p.discard(conn)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		conn.Close()
		p.activeCount--
		return
	}

	select {
	case p.conns <- conn:
	default:
		// Pool is full, close the connection
		conn.Close()
		p.activeCount--
	}
}

// Close closes all idle connections; connections still checked out are
// closed when they are returned.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.conns)
	p.mu.Unlock()

	for conn := range p.conns {
		conn.Close()
	}
	return nil
}

// Stats returns pool statistics
func (p *ConnectionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		ActiveCount:    p.activeCount,
		AvailableCount: len(p.conns),
		MaxSize:        p.maxSize,
		MinSize:        p.minSize,
	}
}

// PoolStats represents pool statistics
type PoolStats struct {
	ActiveCount    int
	AvailableCount int
	MaxSize        int
	MinSize        int
}
