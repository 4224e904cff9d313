package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"envoy.ai/internal/observability"
	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/diplomacy"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/world"
)

var ErrStopped = errors.New("session stopped")

type Config struct {
	Diplomacy diplomacy.Config
	// TurnInterval advances the turn on a timer; zero leaves turns to AdvanceTurn.
	TurnInterval time.Duration
	// MaxQueue bounds the request inbox.
	MaxQueue       int
	ScenarioDigest string
}

func (c *Config) applyDefaults() {
	if c.MaxQueue <= 0 {
		c.MaxQueue = 64
	}
	if c.TurnInterval < 0 {
		c.TurnInterval = 0
	}
}

type Options struct {
	World     *world.World
	Logger    *log.Logger
	Metrics   *observability.Metrics
	Recorders []Recorder
	// Advisor is consulted for AI players; nil disables it.
	Advisor diplomacy.Advisor
}

type clientState struct {
	Player model.PlayerID
	Out    chan []byte
}

type adminReq struct {
	fn   func()
	done chan struct{}
}

// Session is one running game: the world, its treaties and the connected
// clients. Everything it owns is touched only by the Run goroutine.
type Session struct {
	cfg       Config
	id        string
	log       *log.Logger
	metrics   *observability.Metrics
	recorders []Recorder

	world *world.World
	dipl  *diplomacy.Service

	clients map[model.PlayerID]map[string]*clientState
	conns   map[string]*clientState

	attach chan AttachRequest
	leave  chan string
	inbox  chan Request
	admin  chan adminReq

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	runOnce  sync.Once
}

func New(cfg Config, opts Options) (*Session, error) {
	cfg.applyDefaults()
	if opts.World == nil {
		return nil, errors.New("session: nil world")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Session{
		cfg:       cfg,
		id:        uuid.NewString(),
		log:       logger,
		metrics:   opts.Metrics,
		recorders: opts.Recorders,
		world:     opts.World,
		clients:   map[model.PlayerID]map[string]*clientState{},
		conns:     map[string]*clientState{},
		attach:    make(chan AttachRequest, 16),
		leave:     make(chan string, 64),
		inbox:     make(chan Request, cfg.MaxQueue),
		admin:     make(chan adminReq, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.dipl = diplomacy.New(diplomacy.Options{
		World:    opts.World,
		Outbox:   outbox{s},
		EventLog: eventLog{s},
		Advisor:  opts.Advisor,
		Hooks:    s.hooks(),
		Config:   cfg.Diplomacy,
		Logger:   logger,
	})
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Run processes attaches, requests and admin calls until ctx is cancelled
// or Stop is called. It must be called at most once.
func (s *Session) Run(ctx context.Context) error {
	defer s.shutdown()

	var turnC <-chan time.Time
	if s.cfg.TurnInterval > 0 {
		ticker := time.NewTicker(s.cfg.TurnInterval)
		defer ticker.Stop()
		turnC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.attach:
			s.handleAttach(req)
		case id := <-s.leave:
			s.handleLeave(id)
		case req := <-s.inbox:
			s.handleRequest(req)
		case req := <-s.admin:
			s.drainQueued()
			req.fn()
			close(req.done)
		case <-turnC:
			s.advanceTurn()
		}
	}
}

// drainQueued handles leaves and requests already buffered so that an admin
// call observes everything submitted before it.
func (s *Session) drainQueued() {
	for {
		select {
		case id := <-s.leave:
			s.handleLeave(id)
		case req := <-s.inbox:
			s.handleRequest(req)
		default:
			return
		}
	}
}

func (s *Session) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

func (s *Session) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) shutdown() {
	s.runOnce.Do(func() {
		s.dipl.Close()
		for id, c := range s.conns {
			close(c.Out)
			delete(s.conns, id)
		}
		s.clients = map[model.PlayerID]map[string]*clientState{}
		s.metrics.SetConnections(0)
		s.metrics.SetActiveTreaties(0)
		close(s.done)
	})
}

// Attach registers a connection and waits for the WELCOME. Rejections come
// back as a response with Code set, not as an error.
func (s *Session) Attach(ctx context.Context, player model.PlayerID, token string, out chan []byte) (AttachResponse, error) {
	resp := make(chan AttachResponse, 1)
	req := AttachRequest{PlayerID: player, Token: token, Out: out, Resp: resp}
	if s.stopped() {
		return AttachResponse{}, ErrStopped
	}
	select {
	case s.attach <- req:
	case <-s.done:
		return AttachResponse{}, ErrStopped
	case <-ctx.Done():
		return AttachResponse{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-s.done:
		return AttachResponse{}, ErrStopped
	case <-ctx.Done():
		return AttachResponse{}, ctx.Err()
	}
}

// Leave detaches a connection. Unknown ids are ignored.
func (s *Session) Leave(connID string) {
	select {
	case s.leave <- connID:
	case <-s.done:
	}
}

// Submit queues a request for the session goroutine.
func (s *Session) Submit(ctx context.Context, req Request) error {
	if s.stopped() {
		return ErrStopped
	}
	select {
	case s.inbox <- req:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) handleAttach(req AttachRequest) {
	reply := func(r AttachResponse) {
		if req.Resp != nil {
			req.Resp <- r
		}
	}
	if req.Out == nil {
		reply(AttachResponse{Code: protocol.ErrBadRequest, Message: "missing output channel"})
		return
	}
	if !s.world.ValidPlayer(req.PlayerID) || !s.world.Authenticate(req.PlayerID, req.Token) {
		s.metrics.ConnectionRejected("auth")
		reply(AttachResponse{Code: protocol.ErrAuth, Message: "unknown player or bad token"})
		return
	}

	connID := uuid.NewString()
	c := &clientState{Player: req.PlayerID, Out: req.Out}
	if s.clients[req.PlayerID] == nil {
		s.clients[req.PlayerID] = map[string]*clientState{}
	}
	s.clients[req.PlayerID][connID] = c
	s.conns[connID] = c
	s.metrics.SetConnections(len(s.conns))

	var resync [][]byte
	for _, msg := range s.dipl.Resync(req.PlayerID) {
		b, err := json.Marshal(msg)
		if err != nil {
			s.log.Printf("marshal %T: %v", msg, err)
			continue
		}
		resync = append(resync, b)
	}

	reply(AttachResponse{
		ConnID: connID,
		Resync: resync,
		Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       s.id,
			PlayerID:        int(req.PlayerID),
			PlayerName:      s.world.PlayerName(req.PlayerID),
			Turn:            s.world.Turn(),
			ScenarioDigest:  s.cfg.ScenarioDigest,
		},
	})
	s.log.Printf("attach player=%d conn=%s resync=%d", req.PlayerID, connID, len(resync))
}

func (s *Session) handleLeave(connID string) {
	c := s.conns[connID]
	if c == nil {
		return
	}
	s.detach(connID, c)
	s.log.Printf("leave player=%d conn=%s", c.Player, connID)
}

func (s *Session) detach(connID string, c *clientState) {
	delete(s.conns, connID)
	if m := s.clients[c.Player]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(s.clients, c.Player)
		}
	}
	close(c.Out)
	s.metrics.SetConnections(len(s.conns))
}

func (s *Session) handleRequest(req Request) {
	if req.ConnID != "" {
		c := s.conns[req.ConnID]
		if c == nil || c.Player != req.Player {
			return
		}
	}
	start := time.Now()
	switch req.Type {
	case protocol.TypeInitMeetingReq:
		s.dipl.InitMeeting(req.Player, req.Counterpart)
	case protocol.TypeCancelMeetingReq:
		s.dipl.CancelMeeting(req.Player, req.Counterpart)
	case protocol.TypeCreateClauseReq:
		s.dipl.CreateClause(req.Player, req.Counterpart, req.Clause)
	case protocol.TypeRemoveClauseReq:
		s.dipl.RemoveClause(req.Player, req.Counterpart, req.Clause)
	case protocol.TypeAcceptTreatyReq:
		s.dipl.ToggleAccept(req.Player, req.Counterpart)
	default:
		s.log.Printf("unknown request type %q from player %d", req.Type, req.Player)
		return
	}
	s.metrics.RequestHandled(req.Type, time.Since(start))
}

// do runs fn on the session goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	req := adminReq{fn: fn, done: make(chan struct{})}
	if s.stopped() {
		return ErrStopped
	}
	select {
	case s.admin <- req:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-s.done:
		select {
		case <-req.done:
			return nil
		default:
		}
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
