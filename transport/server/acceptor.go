package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/scriptrpc/scriptrpc"
	"github.com/scriptrpc/scriptrpc/framing"
	"github.com/scriptrpc/scriptrpc/internal/collection"
)

// Acceptor listens on one TCP endpoint and hands each accepted connection
// to a worker from a fixed-size pool. A single worker may service many
// sequential requests on one persistent connection; concurrency across
// connections is bounded by the pool size, so a saturated pool leaves new
// connections waiting in the accept backlog.
type Acceptor struct {
	Addr       string
	PoolSize   int
	Dispatcher *Dispatcher
	Logger     scriptrpc.LogSink

	sem   chan struct{}
	conns *collection.SyncMap[string, net.Conn]
	wg    sync.WaitGroup
}

// NewAcceptor wires a Dispatcher behind a bounded worker pool listening on
// addr. poolSize <= 0 falls back to scriptrpc.DefaultWorkerPool.
func NewAcceptor(addr string, poolSize int, dispatcher *Dispatcher, logger scriptrpc.LogSink) *Acceptor {
	if poolSize <= 0 {
		poolSize = scriptrpc.DefaultWorkerPool
	}
	if logger == nil {
		logger = scriptrpc.NopLogSink{}
	}
	return &Acceptor{
		Addr:       addr,
		PoolSize:   poolSize,
		Dispatcher: dispatcher,
		Logger:     logger,
		sem:        make(chan struct{}, poolSize),
		conns:      collection.NewSyncMap[string, net.Conn](),
	}
}

// ListenAndServe blocks accepting connections until ctx is cancelled or the
// listener fails. Each connection acquires a pool slot before its worker
// loop starts and releases it when the loop exits.
func (a *Acceptor) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Addr)
	if err != nil {
		return scriptrpc.NewTransportError("listen", err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		a.conns.Range(func(_ string, c net.Conn) bool {
			_ = c.Close()
			return true
		})
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				a.wg.Wait()
				return nil
			}
			return scriptrpc.NewTransportError("accept", err)
		}

		select {
		case a.sem <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			a.wg.Wait()
			return nil
		}

		a.wg.Add(1)
		a.conns.Put(conn.RemoteAddr().String(), conn)
		go a.serve(ctx, conn)
	}
}

func (a *Acceptor) serve(ctx context.Context, conn net.Conn) {
	defer func() {
		_ = conn.Close()
		a.conns.Delete(conn.RemoteAddr().String())
		<-a.sem
		a.wg.Done()
	}()

	for {
		frame, err := framing.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.Logger.Errorf("acceptor: read from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		var req scriptrpc.Request
		if err := json.Unmarshal(frame, &req); err != nil {
			a.Logger.Errorf("acceptor: decode request from %s: %v", conn.RemoteAddr(), err)
			return
		}

		resp := a.Dispatcher.Dispatch(ctx, &req)
		data, err := json.Marshal(resp)
		if err != nil {
			a.Logger.Errorf("acceptor: encode response for %s: %v", conn.RemoteAddr(), err)
			return
		}
		if err := framing.WriteFrame(conn, data); err != nil {
			a.Logger.Errorf("acceptor: write to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}
