package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelmesh.ai/internal/protocol"
	"voxelmesh.ai/internal/sim/world"
)

type Config struct {
	WorldID  string
	Params   protocol.WorldParams
	Catalogs protocol.CatalogDigests

	// SendQueue caps the per-connection outbound queue; clients may ask for
	// less in HELLO.
	SendQueue int
	Logger    *log.Logger
}

type Server struct {
	builder *world.Builder
	cfg     Config
	log     *log.Logger

	upgrader websocket.Upgrader

	sessions    atomic.Uint64
	connections atomic.Int64
	requests    atomic.Uint64
	errors      atomic.Uint64
}

type Stats struct {
	Connections int64  `json:"connections"`
	Sessions    uint64 `json:"sessions"`
	Requests    uint64 `json:"requests"`
	Errors      uint64 `json:"errors"`
}

func NewServer(b *world.Builder, cfg Config) *Server {
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		builder: b,
		cfg:     cfg,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.connections.Load(),
		Sessions:    s.sessions.Load(),
		Requests:    s.requests.Load(),
		Errors:      s.errors.Load(),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}
		s.connections.Add(1)
		defer s.connections.Add(-1)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Requests are served in order; a BUILD in flight is
		// cancelled when the connection drops.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.requests.Add(1)
			resp := s.handle(ctx, msg)
			if e, ok := resp.(protocol.ErrorMsg); ok {
				s.errors.Add(1)
				s.log.Printf("session %s: %s %s", sessionID, e.Code, e.Message)
			}
			b, err := json.Marshal(resp)
			if err != nil {
				s.log.Printf("session %s: marshal: %v", sessionID, err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		<-done
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 || maxQ > s.cfg.SendQueue {
		maxQ = s.cfg.SendQueue
	}
	out = make(chan []byte, maxQ)

	sessionID = fmt.Sprintf("S%d", s.sessions.Add(1))
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldID:         s.cfg.WorldID,
		WorldParams:     s.cfg.Params,
		Catalogs:        s.cfg.Catalogs,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	s.log.Printf("session %s: %s connected", sessionID, hello.ClientName)
	return sessionID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
