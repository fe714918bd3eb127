package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"number_baseball/internal/domain"
	"number_baseball/internal/logger"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type player struct {
	name string
	conn *websocket.Conn
	id   string
}

func dial(name, url string) *player {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logger.Fatal("dial", "player", name, "url", url, "error", err)
	}
	p := &player{name: name, conn: conn}
	var hello domain.ConnectedPayload
	p.expect(domain.EventConnected, &hello)
	p.id = hello.ConnectionID
	return p
}

func (p *player) send(event string, payload any) {
	msg := map[string]any{"type": event}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := p.conn.WriteJSON(msg); err != nil {
		logger.Fatal("write", "player", p.name, "event", event, "error", err)
	}
}

// expect reads until an event of type want arrives, failing on error events.
func (p *player) expect(want string, out any) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = p.conn.SetReadDeadline(deadline)
		var f frame
		if err := p.conn.ReadJSON(&f); err != nil {
			logger.Fatal("read", "player", p.name, "want", want, "error", err)
		}
		logger.Info("recv", "player", p.name, "type", f.Type, "payload", string(f.Payload))
		if f.Type == domain.EventError && want != domain.EventError {
			logger.Fatal("server error", "player", p.name, "payload", string(f.Payload))
		}
		if f.Type != want {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(f.Payload, out); err != nil {
				logger.Fatal("decode", "player", p.name, "type", f.Type, "error", err)
			}
		}
		return
	}
}

func main() {
	logger.Init("info", "text")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("ws://127.0.0.1:%s", port)
	suffix := ""
	if token := os.Getenv("WS_TOKEN"); token != "" {
		suffix = "?token=" + token
	}

	a := dial("A", base+"/ws"+suffix)
	b := dial("B", base+"/ws"+suffix)

	a.send(domain.EventRequestRandomMatch, domain.TurnTimeLimitPayload{TurnTimeLimit: 60})
	a.expect(domain.EventNoUsersAvailable, nil)
	b.send(domain.EventRequestRandomMatch, domain.TurnTimeLimitPayload{TurnTimeLimit: 60})
	a.expect(domain.EventMatched, nil)
	b.expect(domain.EventMatched, nil)

	a.send(domain.EventApproveRandomMatch, nil)
	b.send(domain.EventApproveRandomMatch, nil)
	var approved domain.MatchApprovedPayload
	a.expect(domain.EventMatchApproved, &approved)
	b.expect(domain.EventMatchApproved, nil)
	logger.Info("session ready", "session", approved.SessionID, "turnTimeLimit", approved.TurnTimeLimit)

	da := dial("A", base+"/ws/duel/"+approved.SessionID+suffix)
	db := dial("B", base+"/ws/duel/"+approved.SessionID+suffix)
	defer da.conn.Close()
	defer db.conn.Close()
	_ = a.conn.Close()
	_ = b.conn.Close()

	numbers := map[string]string{da.id: "1234", db.id: "5678"}
	da.send(domain.EventSetNumber, domain.NumberPayload{Code: numbers[da.id]})
	db.send(domain.EventSetNumber, domain.NumberPayload{Code: numbers[db.id]})

	var turn domain.ChangeTurnPayload
	da.expect(domain.EventGameStart, nil)
	da.expect(domain.EventChangeTurn, &turn)
	db.expect(domain.EventGameStart, nil)
	db.expect(domain.EventChangeTurn, nil)

	first, second := da, db
	if turn.TurnHolder == db.id {
		first, second = db, da
	}

	first.send(domain.EventGuessNumber, domain.NumberPayload{Code: "9876"})
	first.expect(domain.EventGuessResult, nil)
	second.expect(domain.EventChangeTurn, nil)

	second.send(domain.EventGuessNumber, domain.NumberPayload{Code: numbers[first.id]})
	var end domain.GameEndPayload
	second.expect(domain.EventGameEnd, &end)
	first.expect(domain.EventGameEnd, nil)

	logger.Info("smoke test finished", "winner", second.name, "isWinner", end.IsWinner)
}
