package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"envoy.ai/internal/observability"
	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/session"
)

type Config struct {
	// MaxQueue is the per-connection send buffer.
	MaxQueue int
	// RequestsPerSecond and Burst limit diplomacy requests per connection.
	RequestsPerSecond float64
	Burst             int
}

func (c *Config) applyDefaults() {
	if c.MaxQueue <= 0 {
		c.MaxQueue = 64
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 40
	}
}

type Server struct {
	sess    *session.Session
	cfg     Config
	log     *log.Logger
	metrics *observability.Metrics

	upgrader websocket.Upgrader
}

func NewServer(sess *session.Session, cfg Config, logger *log.Logger, metrics *observability.Metrics) *Server {
	cfg.applyDefaults()
	return &Server{
		sess:    sess,
		cfg:     cfg,
		log:     logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		player, connID, out := s.handshake(r.Context(), conn)
		if connID == "" {
			return
		}
		defer s.sess.Leave(connID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Errors for this connection only; the writer owns the socket.
		errs := make(chan []byte, 8)

		// Writer goroutine.
		go func() {
			defer conn.Close()
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-errs:
				case m, ok := <-out:
					if !ok {
						// Session detached us (leave or slow consumer).
						cancel()
						return
					}
					b = m
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		limiter := rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)
		sendErr := func(code, msg string) {
			b, _ := json.Marshal(errorMsg(code, msg))
			select {
			case errs <- b:
			default:
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if !limiter.Allow() {
				s.metrics.ConnectionRejected("rate_limit")
				sendErr(protocol.ErrRateLimit, "too many requests")
				continue
			}
			req, err := session.ParseRequest(player, connID, msg)
			if err != nil {
				s.metrics.ConnectionRejected("bad_request")
				var re *session.RequestError
				if errors.As(err, &re) {
					sendErr(re.Code, re.Message)
				} else {
					sendErr(protocol.ErrProtoBadRequest, err.Error())
				}
				continue
			}
			if err := s.sess.Submit(ctx, req); err != nil {
				break
			}
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (model.PlayerID, string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return 0, "", nil
	}
	if err := protocol.Validate(msg); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, "malformed HELLO")
		return 0, "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, "malformed HELLO")
		return 0, "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.metrics.ConnectionRejected("version")
		s.reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return 0, "", nil
	}

	out := make(chan []byte, s.cfg.MaxQueue)
	player := model.PlayerID(hello.PlayerID)
	resp, err := s.sess.Attach(ctx, player, hello.Token, out)
	if err != nil {
		s.reject(conn, protocol.ErrInternal, "session unavailable")
		return 0, "", nil
	}
	if !resp.OK() {
		s.reject(conn, resp.Code, resp.Message)
		return 0, "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.sess.Leave(resp.ConnID)
		return 0, "", nil
	}
	// Resync frames bypass out; the send buffer does not bound them.
	for _, b := range resp.Resync {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			s.sess.Leave(resp.ConnID)
			return 0, "", nil
		}
	}
	if s.log != nil {
		s.log.Printf("player %d connected as %q conn=%s", player, hello.ClientName, resp.ConnID)
	}
	return player, resp.ConnID, out
}

func (s *Server) reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, errorMsg(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

func errorMsg(code, msg string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
