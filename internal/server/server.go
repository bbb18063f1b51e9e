package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/skshohagmiah/fawldb/internal/db"
	"github.com/skshohagmiah/fawldb/internal/logger"
	"github.com/skshohagmiah/fawldb/internal/protocol"
)

const (
	// DefaultWorkers bounds concurrently served connections
	DefaultWorkers = 256

	readTimeout  = 5 * time.Minute
	writeTimeout = 10 * time.Second
	outQueueSize = 64
	readBufSize  = 32 * 1024
)

// Server serves the binary document protocol over TCP
type Server struct {
	handler     *Handler
	metrics     *Metrics
	log         *slog.Logger
	listener    net.Listener
	pool        *ants.Pool
	connections sync.Map
	connCounter atomic.Uint64
	wg          sync.WaitGroup

	// Metrics
	opsProcessed atomic.Uint64
	opsErrors    atomic.Uint64
	opsRejected  atomic.Uint64
	activeConns  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// Connection represents a single client connection
type Connection struct {
	id      uint64
	session string
	conn    net.Conn
	server  *Server

	// Buffered channel for responses
	outQueue chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer listens on addr. workers bounds how many connections are served
// at once; further connections are closed immediately.
func NewServer(store *db.DocStore, addr string, workers int, metrics *Metrics) (*Server, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	log := logger.Component("tcp")
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			log.Error("connection handler panic", "panic", v)
		}),
	)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		handler:  NewHandler(store, metrics, log),
		metrics:  metrics,
		log:      log,
		listener: listener,
		pool:     pool,
		ctx:      ctx,
		cancel:   cancel,
	}

	log.Info("server initialized", "addr", listener.Addr().String(), "workers", workers)
	return srv, nil
}

// Addr returns the address the server is listening on
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start runs the accept loop until Stop is called
func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.listener.Addr().String())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		if err := s.pool.Submit(func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}); err != nil {
			s.wg.Done()
			s.opsRejected.Add(1)
			s.log.Warn("connection rejected", "remote", conn.RemoteAddr().String(), "error", err)
			conn.Close()
		}
	}
}

// optimizeTCPConnection applies TCP options for low latency
func optimizeTCPConnection(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	// Disable Nagle's algorithm for low latency
	if err := tcpConn.SetNoDelay(true); err != nil {
		return err
	}

	// Enable TCP keepalive
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := tcpConn.SetKeepAlivePeriod(30 * time.Second); err != nil {
		return err
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		// Result sets can be large; widen the send buffer to 1MB
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, 1024*1024)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// handleConnection manages a single client connection
func (s *Server) handleConnection(netConn net.Conn) {
	connID := s.connCounter.Add(1)
	s.activeConns.Add(1)
	defer s.activeConns.Add(-1)
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
		defer s.metrics.ActiveConnections.Dec()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if err := optimizeTCPConnection(netConn); err != nil {
		s.log.Debug("failed to tune TCP connection", "error", err)
	}

	conn := &Connection{
		id:       connID,
		session:  uuid.NewString(),
		conn:     netConn,
		server:   s,
		outQueue: make(chan []byte, outQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.connections.Store(connID, conn)
	defer s.connections.Delete(connID)
	defer netConn.Close()

	s.log.Debug("connection opened", "session", conn.session, "remote", netConn.RemoteAddr().String())

	// One goroutine reads and executes requests in order, one writes responses
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		conn.readLoop()
	}()

	go func() {
		defer wg.Done()
		conn.writeLoop()
	}()

	wg.Wait()
	s.log.Debug("connection closed", "session", conn.session)
}

// readLoop reads framed requests and queues their responses
func (c *Connection) readLoop() {
	defer c.cancel()

	reader := bufio.NewReaderSize(c.conn, readBufSize)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		frame, err := protocol.ReadFrame(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.server.log.Debug("read failed", "session", c.session, "error", err)
			}
			return
		}

		c.processRequest(frame)
	}
}

// writeLoop handles outgoing responses
func (c *Connection) writeLoop() {
	defer c.cancel()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.outQueue:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if _, err := c.conn.Write(msg); err != nil {
				return
			}
		}
	}
}

func (c *Connection) processRequest(frame []byte) {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		c.server.opsErrors.Add(1)
		c.send(protocol.EncodeErrorResponse(err))
		return
	}

	response := c.server.handler.Handle(req)
	if len(response) > 0 && response[0] == protocol.StatusError {
		c.server.opsErrors.Add(1)
	} else {
		c.server.opsProcessed.Add(1)
	}
	c.send(response)
}

// send queues a response, blocking while the writer catches up
func (c *Connection) send(response []byte) {
	select {
	case c.outQueue <- response:
	case <-c.ctx.Done():
	}
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()
	err := s.listener.Close()

	// Close all connections to unblock pending reads
	s.connections.Range(func(key, value interface{}) bool {
		if conn, ok := value.(*Connection); ok {
			conn.cancel()
			conn.conn.Close()
		}
		return true
	})

	s.wg.Wait()
	_ = s.pool.ReleaseTimeout(3 * time.Second)

	s.log.Info("server stopped")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	return map[string]interface{}{
		"active_connections": s.activeConns.Load(),
		"ops_processed":      s.opsProcessed.Load(),
		"ops_errors":         s.opsErrors.Load(),
		"connections_total":  s.connCounter.Load(),
		"rejected":           s.opsRejected.Load(),
		"pool_capacity":      s.pool.Cap(),
		"pool_running":       s.pool.Running(),
	}
}
