package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"number_baseball/internal/config"
	"number_baseball/internal/domain"
	httpserver "number_baseball/internal/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsConn struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		EventRate:     1000,
		EventBurst:    1000,
		APIRateLimit:  1000,
		APIRateWindow: 60,
	}
	srv := httptest.NewServer(httpserver.NewRouter(cfg, httpserver.MemoryBackends(), "test"))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *wsConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsConn{t: t, conn: conn}
	var hello domain.ConnectedPayload
	c.expect(domain.EventConnected, &hello)
	c.id = hello.ConnectionID
	return c
}

func (c *wsConn) send(event string, payload any) {
	c.t.Helper()
	msg := map[string]any{"type": event}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("send %s: %v", event, err)
	}
}

// expect skips frames until one of type want arrives.
func (c *wsConn) expect(want string, out any) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.t.Fatalf("waiting for %s: %v", want, err)
		}
		if f.Type == domain.EventError && want != domain.EventError {
			c.t.Fatalf("waiting for %s: got error %s", want, f.Payload)
		}
		if f.Type != want {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(f.Payload, out); err != nil {
				c.t.Fatalf("decode %s: %v", want, err)
			}
		}
		return
	}
}

func randomMatch(t *testing.T, srv *httptest.Server) (a, b *wsConn, session string) {
	t.Helper()
	a = dial(t, srv, "/ws")
	b = dial(t, srv, "/ws")

	a.send(domain.EventRequestRandomMatch, nil)
	a.expect(domain.EventNoUsersAvailable, nil)
	b.send(domain.EventRequestRandomMatch, nil)

	var ma, mb domain.MatchedPayload
	a.expect(domain.EventMatched, &ma)
	b.expect(domain.EventMatched, &mb)
	if ma.MatchID == "" || ma.MatchID != mb.MatchID {
		t.Fatalf("match ids %q / %q", ma.MatchID, mb.MatchID)
	}

	a.send(domain.EventApproveRandomMatch, nil)
	b.send(domain.EventApproveRandomMatch, nil)
	var pa, pb domain.MatchApprovedPayload
	a.expect(domain.EventMatchApproved, &pa)
	b.expect(domain.EventMatchApproved, &pb)
	if pa.SessionID == "" || pa.SessionID != pb.SessionID {
		t.Fatalf("session ids %q / %q", pa.SessionID, pb.SessionID)
	}
	return a, b, pa.SessionID
}

// startDuel seats two duel connections, commits numbers and returns them in
// turn order.
func startDuel(t *testing.T, srv *httptest.Server, session string) (first, second *wsConn, numbers map[string]string) {
	t.Helper()
	x := dial(t, srv, "/ws/duel/"+session)
	y := dial(t, srv, "/ws/duel/"+session)
	numbers = map[string]string{x.id: "1234", y.id: "5678"}

	x.send(domain.EventSetNumber, domain.NumberPayload{Code: numbers[x.id]})
	x.expect(domain.EventNumberRegistered, nil)
	y.send(domain.EventSetNumber, domain.NumberPayload{Code: numbers[y.id]})

	var start domain.GameStartPayload
	var turn domain.ChangeTurnPayload
	x.expect(domain.EventGameStart, &start)
	x.expect(domain.EventChangeTurn, &turn)
	if start.MyNumber != numbers[x.id] || start.MyConnectionID != x.id {
		t.Fatalf("game_start = %+v", start)
	}
	y.expect(domain.EventGameStart, nil)
	y.expect(domain.EventChangeTurn, nil)

	if turn.TurnHolder == x.id {
		return x, y, numbers
	}
	return y, x, numbers
}

func getPhase(t *testing.T, srv *httptest.Server, session string) string {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/v1/duels/" + session)
	if err != nil {
		t.Fatalf("get duel: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Phase string `json:"phase"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode duel: %v", err)
	}
	return body.Phase
}

func TestE2ERandomMatch(t *testing.T) {
	srv := newServer(t)
	_, _, session := randomMatch(t, srv)
	if phase := getPhase(t, srv, session); phase != string(domain.PhaseAwaitingConnections) {
		t.Fatalf("phase = %s", phase)
	}
}

func TestE2ESecretMatch(t *testing.T) {
	srv := newServer(t)
	host := dial(t, srv, "/ws")
	guest := dial(t, srv, "/ws")

	host.send(domain.EventCreateSecretMatch, domain.TurnTimeLimitPayload{TurnTimeLimit: 30})
	var created domain.SecretMatchCreatedPayload
	host.expect(domain.EventSecretMatchCreated, &created)
	if created.Code < 1000 || created.Code > 9999 {
		t.Fatalf("code = %d", created.Code)
	}

	guest.send(domain.EventJoinSecretMatch, domain.JoinCodePayload{Code: created.Code})
	var ph, pg domain.MatchApprovedPayload
	host.expect(domain.EventMatchApproved, &ph)
	guest.expect(domain.EventMatchApproved, &pg)
	if ph.SessionID == "" || ph.SessionID != pg.SessionID || ph.TurnTimeLimit != 30 {
		t.Fatalf("approved %+v / %+v", ph, pg)
	}

	// the code is spent
	other := dial(t, srv, "/ws")
	other.send(domain.EventJoinSecretMatch, domain.JoinCodePayload{Code: created.Code})
	var e domain.ErrorPayload
	other.expect(domain.EventError, &e)
	if e.StatusCode != http.StatusNotFound || e.Message != "Invalid code" {
		t.Fatalf("error = %+v", e)
	}
}

func TestE2EGuessToWin(t *testing.T) {
	srv := newServer(t)
	_, _, session := randomMatch(t, srv)
	first, second, numbers := startDuel(t, srv, session)

	first.send(domain.EventGuessNumber, domain.NumberPayload{Code: numbers[second.id]})
	var res domain.GuessResultPayload
	first.expect(domain.EventGuessResult, &res)
	if res.Strikes != 4 || res.Balls != 0 {
		t.Fatalf("guess result = %+v", res)
	}
	var opp domain.OpponentGuessResultPayload
	second.expect(domain.EventOpponentGuessResult, &opp)
	if opp.Strikes != 4 {
		t.Fatalf("opponent result = %+v", opp)
	}

	var win, lose domain.GameEndPayload
	first.expect(domain.EventGameEnd, &win)
	second.expect(domain.EventGameEnd, &lose)
	if !win.IsWinner || lose.IsWinner {
		t.Fatalf("game_end %+v / %+v", win, lose)
	}
	if phase := getPhase(t, srv, session); phase != string(domain.PhaseFinished) {
		t.Fatalf("phase = %s", phase)
	}

	second.send(domain.EventGuessNumber, domain.NumberPayload{Code: "9876"})
	var e domain.ErrorPayload
	second.expect(domain.EventError, &e)
	if e.StatusCode != http.StatusConflict {
		t.Fatalf("guess after finish = %+v", e)
	}
}

func TestE2EDisconnectForfeits(t *testing.T) {
	srv := newServer(t)
	_, _, session := randomMatch(t, srv)
	first, second, _ := startDuel(t, srv, session)

	_ = first.conn.Close()

	var end domain.GameEndPayload
	second.expect(domain.EventGameEnd, &end)
	if !end.IsWinner || end.Reason != domain.ReasonOpponentLeft {
		t.Fatalf("game_end = %+v", end)
	}
	if phase := getPhase(t, srv, session); phase != string(domain.PhaseFinished) {
		t.Fatalf("phase = %s", phase)
	}
}

func TestE2EInvalidNumbers(t *testing.T) {
	srv := newServer(t)
	_, _, session := randomMatch(t, srv)
	c := dial(t, srv, "/ws/duel/"+session)

	for _, tc := range []struct{ number, message string }{
		{"1123", "Number must be unique"},
		{"12a3", "Number must be number"},
		{"123", "Number length must be 4"},
	} {
		c.send(domain.EventSetNumber, domain.NumberPayload{Code: tc.number})
		var e domain.ErrorPayload
		c.expect(domain.EventError, &e)
		if e.StatusCode != http.StatusBadRequest || e.Message != tc.message {
			t.Fatalf("set_number(%q) = %+v", tc.number, e)
		}
	}
}
