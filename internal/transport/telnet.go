// Package transport implements the TCP line-protocol boundary. It owns
// sockets, login, and output buffering; the engine only ever sees complete
// command lines and a player.Participant per session. Output writes are
// buffered and never block the engine goroutine: a client that cannot keep
// up drops lines instead of stalling the server.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"table-game-server/internal/player"
)

// outBuffer is the per-session pending output capacity.
const outBuffer = 64

// Session is one connected client. It implements player.Participant.
type Session struct {
	id    string
	name  string
	admin bool

	conn net.Conn

	mu     sync.Mutex
	out    chan string
	closed bool
}

// ID returns the stable session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the login name.
func (s *Session) Name() string { return s.name }

// IsAdmin reports whether the login name is a configured admin.
func (s *Session) IsAdmin() bool { return s.admin }

// Send queues a line for delivery. Never blocks; a full buffer or a closed
// session drops the line.
func (s *Session) Send(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- text:
	default:
		log.Warn().
			Str("component", "transport").
			Str("participant", s.name).
			Msg("output buffer full, line dropped")
	}
}

// close stops accepting output and closes the buffer. The connection itself
// is closed by serve once the writer has drained.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// Sink receives session lifecycle and command events. The engine implements
// it.
type Sink interface {
	Connect(p player.Participant)
	Disconnect(p player.Participant)
	Submit(p player.Participant, line string)
}

// Server accepts TCP connections and speaks the line protocol.
type Server struct {
	addr    string
	sink    Sink
	isAdmin func(name string) bool
}

// NewServer creates a transport server. isAdmin is the identity layer's
// admin predicate, keyed by login name.
func NewServer(addr string, sink Sink, isAdmin func(name string) bool) *Server {
	return &Server{addr: addr, sink: sink, isAdmin: isAdmin}
}

// ListenAndServe accepts connections until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	log.Info().Str("component", "transport").Str("addr", s.addr).Msg("listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("component", "transport").Msg("accept failed")
			continue
		}
		go s.serve(conn)
	}
}

// serve runs one connection: login, then a read loop feeding the engine,
// with a writer goroutine flushing the output buffer.
func (s *Server) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewScanner(conn)

	fmt.Fprintf(conn, "name: ")
	if !reader.Scan() {
		return
	}
	name := strings.TrimSpace(reader.Text())
	if name == "" || len(name) > 32 {
		fmt.Fprintf(conn, "Invalid name.\r\n")
		return
	}

	sess := &Session{
		id:    uuid.NewString(),
		name:  name,
		admin: s.isAdmin(name),
		conn:  conn,
		out:   make(chan string, outBuffer),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for line := range sess.out {
			if _, err := fmt.Fprintf(conn, "%s\r\n", line); err != nil {
				return
			}
		}
	}()

	s.sink.Connect(sess)
	defer func() {
		s.sink.Disconnect(sess)
		sess.close()
		// Let pending output flush before the connection drops, but never
		// hang on a stuck client.
		select {
		case <-writerDone:
		case <-time.After(2 * time.Second):
		}
	}()

	for reader.Scan() {
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") {
			sess.Send("Goodbye.")
			return
		}
		s.sink.Submit(sess, line)
	}
}
