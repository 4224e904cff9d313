package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"envoy.ai/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		player = flag.Int("player", 1, "player id to play as")
		token  = flag.String("token", "", "player token")
		name   = flag.String("name", "bot", "client name")
		meet   = flag.Int("meet", 0, "open a meeting with this player (0: only answer others)")
		offers = flag.String("offer", "", "clauses to propose when meeting, e.g. GOLD:10,SEAMAP (giver is the bot)")
		asks   = flag.String("ask", "", "clauses to request from the counterpart, same format as -offer")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	proposals, err := parseClauses(*offers, *asks)
	if err != nil {
		logger.Fatalf("clauses: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerID:        *player,
		Token:           *token,
		ClientName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	b := &bot{conn: conn, log: logger, self: *player, proposals: proposals}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME player=%d (%s) turn=%d session=%s", w.PlayerID, w.PlayerName, w.Turn, w.SessionID)
			if *meet != 0 {
				b.send(protocol.MeetingReq{Type: protocol.TypeInitMeetingReq, ProtocolVersion: protocol.Version, Counterpart: *meet})
			}

		case protocol.TypeInitMeeting:
			var m protocol.MeetingMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				continue
			}
			logger.Printf("meeting with %d opened by %d", m.Counterpart, m.InitiatedFrom)
			if m.InitiatedFrom == b.self {
				b.propose(m.Counterpart)
			}

		case protocol.TypeCreateClause, protocol.TypeRemoveClause:
			var c protocol.ClauseMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			logger.Printf("%s with %d: giver=%d %s %d", base.Type, c.Counterpart, c.Giver, c.Kind, c.Value)

		case protocol.TypeAcceptTreaty:
			var a protocol.AcceptMsg
			if err := json.Unmarshal(msg, &a); err != nil {
				continue
			}
			logger.Printf("accept flags with %d: self=%t other=%t", a.Counterpart, a.SelfAccepted, a.OtherAccepted)
			// Agree to whatever the other side has agreed to.
			if a.OtherAccepted && !a.SelfAccepted {
				b.send(protocol.MeetingReq{Type: protocol.TypeAcceptTreatyReq, ProtocolVersion: protocol.Version, Counterpart: a.Counterpart})
			}

		case protocol.TypeCancelMeeting:
			var m protocol.MeetingMsg
			if err := json.Unmarshal(msg, &m); err == nil {
				logger.Printf("meeting with %d closed", m.Counterpart)
			}

		case protocol.TypeNotify:
			var n protocol.NotifyMsg
			if err := json.Unmarshal(msg, &n); err == nil {
				logger.Printf("NOTIFY %s: %s", n.Event, n.Text)
			}

		case protocol.TypePlayerInfo:
			var p protocol.PlayerInfoMsg
			if err := json.Unmarshal(msg, &p); err == nil {
				logger.Printf("PLAYER_INFO %d %s gold=%d techs=%v cities=%v", p.PlayerID, p.Name, p.Gold, p.Techs, p.Cities)
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR %s: %s", e.Code, e.Message)
			}
		}
	}
}

type proposal struct {
	fromSelf bool
	kind     string
	value    int
}

type bot struct {
	conn      *websocket.Conn
	log       *log.Logger
	self      int
	proposals []proposal
}

func (b *bot) send(v any) {
	if err := b.conn.WriteJSON(v); err != nil {
		b.log.Printf("write: %v", err)
	}
}

// propose puts every configured clause on the table and accepts.
func (b *bot) propose(counterpart int) {
	for _, p := range b.proposals {
		giver := counterpart
		if p.fromSelf {
			giver = b.self
		}
		b.send(protocol.ClauseReq{
			Type:            protocol.TypeCreateClauseReq,
			ProtocolVersion: protocol.Version,
			Counterpart:     counterpart,
			Giver:           giver,
			Kind:            p.kind,
			Value:           p.value,
		})
	}
	b.send(protocol.MeetingReq{Type: protocol.TypeAcceptTreatyReq, ProtocolVersion: protocol.Version, Counterpart: counterpart})
}

func parseClauses(offers, asks string) ([]proposal, error) {
	var out []proposal
	for _, src := range []struct {
		raw      string
		fromSelf bool
	}{{offers, true}, {asks, false}} {
		for _, item := range strings.Split(src.raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			kind, val, _ := strings.Cut(item, ":")
			p := proposal{fromSelf: src.fromSelf, kind: strings.ToUpper(strings.TrimSpace(kind))}
			if val != "" {
				n, err := strconv.Atoi(strings.TrimSpace(val))
				if err != nil {
					return nil, fmt.Errorf("clause %q: %w", item, err)
				}
				p.value = n
			}
			out = append(out, p)
		}
	}
	return out, nil
}
