// Package httpdebug exposes a minimal, optional HTTP introspection
// endpoint alongside the framed-JSON acceptor: current event bus depth and
// latest seq, for operators who want a curl-able health check without
// speaking the wire protocol. It is never on the dispatch path.
package httpdebug

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"golang.org/x/net/netutil"

	"github.com/scriptrpc/scriptrpc/eventbus"
)

// Server serves a single GET /debug/eventbus endpoint describing the event
// bus's current depth and latest sequence number.
type Server struct {
	Addr        string
	Bus         *eventbus.Bus
	MaxInflight int

	httpServer *http.Server
}

// New builds a debug Server. maxInflight <= 0 disables the connection cap
// (netutil.LimitListener is skipped).
func New(addr string, bus *eventbus.Bus, maxInflight int) *Server {
	s := &Server{Addr: addr, Bus: bus, MaxInflight: maxInflight}
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/eventbus", s.handleEventBus)
	s.httpServer = &http.Server{Handler: mux}
	return s
}

type eventBusStatus struct {
	Len       int    `json:"len"`
	LatestSeq uint64 `json:"latestSeq"`
}

func (s *Server) handleEventBus(w http.ResponseWriter, _ *http.Request) {
	status := eventBusStatus{Len: s.Bus.Len(), LatestSeq: s.Bus.LatestSeq()}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// ListenAndServe blocks serving until ctx is cancelled or the listener
// fails. A non-positive MaxInflight serves without a connection cap;
// otherwise the listener is wrapped in netutil.LimitListener so a debug
// endpoint left open to the world cannot exhaust file descriptors shared
// with the main acceptor.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	if s.MaxInflight > 0 {
		ln = netutil.LimitListener(ln, s.MaxInflight)
	}

	go func() {
		<-ctx.Done()
		_ = s.httpServer.Close()
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
