package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"quarrysim.ai/internal/protocol"
	"quarrysim.ai/internal/sim/world"
	"quarrysim.ai/internal/transport/observer"
)

// World is the part of the simulation the control channel drives.
type World interface {
	ID() string
	RunID() string
	CurrentTick() uint64
	Submit(cmd world.Command) bool
}

// Server accepts operator commands over a websocket. Every command gets an
// ACK once it is queued for the next tick boundary.
type Server struct {
	world World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		operator := s.handshake(conn)
		if operator == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		out := make(chan []byte, 64)

		// Writer goroutine.
		go func() {
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

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			ack := s.handleMessage(operator, msg)
			if ack == nil {
				continue
			}
			b, _ := json.Marshal(ack)
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
	}
}

// handleMessage queues a COMMAND and returns its ACK. Other message types
// are ignored.
func (s *Server) handleMessage(operator string, msg []byte) *protocol.AckMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeCommand {
		return nil
	}
	var cmd protocol.CommandMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return nack("", protocol.ErrBadRequest, "bad command")
	}
	if cmd.ProtocolVersion != protocol.Version {
		return nack(cmd.Ref, protocol.ErrBadRequest, "bad protocol_version")
	}
	op := world.CommandOp(strings.ToUpper(strings.TrimSpace(cmd.Op)))
	if !op.Valid() {
		return nack(cmd.Ref, protocol.ErrBadRequest, "unknown op "+cmd.Op)
	}
	ok := s.world.Submit(world.Command{
		Op:      op,
		AgentID: cmd.AgentID,
		SiteID:  cmd.SiteID,
		Kind:    cmd.Kind,
		Weight:  cmd.Weight,
		Flag:    cmd.Flag,

		MaxHealth:   cmd.MaxHealth,
		JunkChance:  cmd.JunkChance,
		ChunkChance: cmd.ChunkChance,
		Difficulty:  cmd.Difficulty,
	})
	if !ok {
		return nack(cmd.Ref, protocol.ErrBlocked, "inbox full")
	}
	if s.log != nil {
		s.log.Printf("command %s from %s queued", op, operator)
	}
	return &protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, Ref: cmd.Ref, Accepted: true}
}

func nack(ref, code, msg string) *protocol.AckMsg {
	return &protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, Ref: ref, Code: code, Message: msg}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}
	if hello.Operator == "" {
		hello.Operator = "operator"
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldID:         s.world.ID(),
		RunID:           s.world.RunID(),
		Tick:            s.world.CurrentTick(),
	}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return ""
	}
	return hello.Operator
}
