package net

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/fawldb/internal/protocol"
)

// echoServer answers every frame with the request payload as the value
func echoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					frame, err := protocol.ReadFrame(r)
					if err != nil {
						return
					}
					if _, err := conn.Write(protocol.EncodeValueResponse(frame[protocol.HeaderSize:])); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestConnectionDo(t *testing.T) {
	conn, err := NewConnection(DefaultConnectionOptions(echoServer(t)))
	require.NoError(t, err)
	defer conn.Close()

	frame := protocol.EncodeGetRequest("users", 7)
	resp, err := conn.Do(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, frame[protocol.HeaderSize:], resp.Value)

	require.NoError(t, conn.Close())
	assert.False(t, conn.IsConnected())
	_, err = conn.Do(frame)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolReusesConnections(t *testing.T) {
	opts := DefaultPoolOptions(echoServer(t))
	opts.MaxSize = 2
	pool, err := NewConnectionPool(opts)
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, 1, pool.Stats().ActiveCount)

	a, err := pool.Get()
	require.NoError(t, err)
	b, err := pool.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Stats().ActiveCount)

	// the pool is exhausted until a connection comes back
	got := make(chan *Connection, 1)
	go func() {
		c, err := pool.Get()
		if err == nil {
			got <- c
		}
	}()
	select {
	case <-got:
		t.Fatal("Get returned while the pool was exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	pool.Put(a)
	select {
	case c := <-got:
		assert.Same(t, a, c)
		pool.Put(c)
	case <-time.After(time.Second):
		t.Fatal("Get did not receive the returned connection")
	}

	b.Close()
	pool.Put(b)
	assert.Equal(t, 1, pool.Stats().ActiveCount)
}

func TestPoolConcurrentUse(t *testing.T) {
	opts := DefaultPoolOptions(echoServer(t))
	opts.MaxSize = 4
	pool, err := NewConnectionPool(opts)
	require.NoError(t, err)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := pool.Get()
			if !assert.NoError(t, err) {
				return
			}
			defer pool.Put(conn)
			_, err = conn.Do(protocol.EncodeGetRequest("users", int64(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, pool.Stats().ActiveCount, 4)
}

func TestPoolClose(t *testing.T) {
	pool, err := NewConnectionPool(DefaultPoolOptions(echoServer(t)))
	require.NoError(t, err)

	conn, err := pool.Get()
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	_, err = pool.Get()
	assert.ErrorIs(t, err, ErrClosed)

	// returning a connection after Close must not panic
	pool.Put(conn)
	assert.False(t, conn.IsConnected())
}

func TestPoolOptionsValidation(t *testing.T) {
	_, err := NewConnectionPool(nil)
	assert.Error(t, err)

	opts := DefaultPoolOptions("127.0.0.1:1")
	opts.MinSize, opts.MaxSize = 4, 2
	_, err = NewConnectionPool(opts)
	assert.Error(t, err)
}
