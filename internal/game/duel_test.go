package game

import (
	"errors"
	"testing"

	"number_baseball/internal/domain"
)

func first(int) int { return 0 }

func noticeTypes(ns []domain.Notice, to string) []string {
	var out []string
	for _, n := range ns {
		if n.To == to {
			out = append(out, n.Type)
		}
	}
	return out
}

func startedDuel(t *testing.T) *Duel {
	t.Helper()
	d := NewDuel(&domain.DuelSession{ID: "s1"}, first)
	for _, c := range []string{"a", "b"} {
		if err := d.Bind(c); err != nil {
			t.Fatalf("bind %s: %v", c, err)
		}
	}
	if _, err := d.SubmitNumber("a", "1234"); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if _, err := d.SubmitNumber("b", "5678"); err != nil {
		t.Fatalf("submit b: %v", err)
	}
	return d
}

func TestBindArrivalOrderAndRoomFull(t *testing.T) {
	d := NewDuel(&domain.DuelSession{ID: "s1"}, first)
	if got := d.Session().Phase(); got != domain.PhaseAwaitingConnections {
		t.Fatalf("phase = %s; want awaiting", got)
	}
	if err := d.Bind("a"); err != nil {
		t.Fatalf("bind a: %v", err)
	}
	if err := d.Bind("a"); err != nil {
		t.Fatalf("rebind a: %v", err)
	}
	if err := d.Bind("b"); err != nil {
		t.Fatalf("bind b: %v", err)
	}
	s := d.Session()
	if s.Player1 != "a" || s.Player2 != "b" {
		t.Fatalf("slots = %s/%s; want a/b", s.Player1, s.Player2)
	}
	if got := s.Phase(); got != domain.PhaseCommitting {
		t.Fatalf("phase = %s; want committing", got)
	}
	err := d.Bind("c")
	if !errors.Is(err, domain.ErrRoomFull) || !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("bind c = %v; want room full conflict", err)
	}
	if s.Slot("c") != 0 {
		t.Fatalf("third connection was admitted")
	}
}

func TestSubmitNumberValidation(t *testing.T) {
	d := NewDuel(&domain.DuelSession{ID: "s1"}, first)
	_ = d.Bind("a")

	cases := []struct {
		in   string
		want error
	}{
		{"1123", domain.ErrNumberNotUnique},
		{"12a3", domain.ErrNumberNotNumeric},
		{"123", domain.ErrNumberLength},
	}
	for _, tc := range cases {
		if _, err := d.SubmitNumber("a", tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("SubmitNumber(%q) = %v; want %v", tc.in, err, tc.want)
		}
	}
	if d.Session().Code1 != "" {
		t.Fatalf("invalid number was stored")
	}
	if _, err := d.SubmitNumber("x", "1234"); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("stranger submit = %v; want not in room", err)
	}
}

func TestSubmitNumberStartsGame(t *testing.T) {
	d := NewDuel(&domain.DuelSession{ID: "s1"}, func(int) int { return 1 })
	_ = d.Bind("a")
	_ = d.Bind("b")

	ns, err := d.SubmitNumber("a", "1234")
	if err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if len(ns) != 1 || ns[0].To != "a" || ns[0].Type != domain.EventNumberRegistered {
		t.Fatalf("first commit notices = %+v; want number_registered to a", ns)
	}
	if _, err := d.SubmitNumber("a", "4321"); !errors.Is(err, domain.ErrAlreadyCommitted) {
		t.Fatalf("second commit = %v; want already committed", err)
	}

	ns, err = d.SubmitNumber("b", "5678")
	if err != nil {
		t.Fatalf("submit b: %v", err)
	}
	s := d.Session()
	if !s.Started || s.Phase() != domain.PhaseActive {
		t.Fatalf("session not active after both commitments")
	}
	if s.TurnHolder != "b" {
		t.Fatalf("turn holder = %s; want b", s.TurnHolder)
	}
	for _, c := range []string{"a", "b"} {
		got := noticeTypes(ns, c)
		if len(got) != 2 || got[0] != domain.EventGameStart || got[1] != domain.EventChangeTurn {
			t.Fatalf("notices for %s = %v", c, got)
		}
	}
	for _, n := range ns {
		if p, ok := n.Payload.(domain.GameStartPayload); ok {
			want := map[string]string{"a": "1234", "b": "5678"}[n.To]
			if p.MyNumber != want || p.MyConnectionID != n.To {
				t.Fatalf("game_start for %s = %+v", n.To, p)
			}
		}
	}
	if _, err := d.SubmitNumber("b", "1357"); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("commit after start = %v; want already started", err)
	}
}

func TestGuessTurnsAndHistory(t *testing.T) {
	d := NewDuel(&domain.DuelSession{ID: "s1"}, first)
	_ = d.Bind("a")
	_ = d.Bind("b")
	if _, err := d.Guess("a", "1234"); !errors.Is(err, domain.ErrNotStarted) {
		t.Fatalf("guess before start = %v; want not started", err)
	}
	_, _ = d.SubmitNumber("a", "1234")
	_, _ = d.SubmitNumber("b", "5678")

	if _, err := d.Guess("b", "1234"); !errors.Is(err, domain.ErrNotYourTurn) || !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("out of turn guess = %v; want forbidden", err)
	}
	if _, err := d.Guess("a", "5566"); !errors.Is(err, domain.ErrNumberNotUnique) {
		t.Fatalf("invalid guess = %v; want validation", err)
	}

	ns, err := d.Guess("a", "5687")
	if err != nil {
		t.Fatalf("guess: %v", err)
	}
	res, ok := ns[0].Payload.(domain.GuessResultPayload)
	if !ok || ns[0].To != "a" || res.Strikes != 2 || res.Balls != 2 || res.Code != "5687" {
		t.Fatalf("guess_result = %+v", ns[0])
	}
	opp, ok := ns[1].Payload.(domain.OpponentGuessResultPayload)
	if !ok || ns[1].To != "b" || opp.Strikes != 2 || opp.Balls != 2 {
		t.Fatalf("opponent_guess_result = %+v", ns[1])
	}
	s := d.Session()
	if s.TurnHolder != "b" {
		t.Fatalf("turn holder = %s; want b", s.TurnHolder)
	}

	_, _ = d.Guess("b", "9012")
	_, _ = d.Guess("a", "5678")
	if len(s.History1) != 2 || s.History1[0].Guess != "5678" || s.History1[1].Guess != "5687" {
		t.Fatalf("history1 not most-recent-first: %+v", s.History1)
	}
	if len(s.History2) != 1 || s.History2[0].Guess != "9012" {
		t.Fatalf("history2 = %+v", s.History2)
	}
}

func TestGuessWinFinishesSession(t *testing.T) {
	d := startedDuel(t)

	ns, err := d.Guess("a", "5678")
	if err != nil {
		t.Fatalf("winning guess: %v", err)
	}
	s := d.Session()
	if !s.Finished || s.Winner != "a" || s.Phase() != domain.PhaseFinished {
		t.Fatalf("session after win = %+v", s)
	}
	var endA, endB *domain.GameEndPayload
	for _, n := range ns {
		if p, ok := n.Payload.(domain.GameEndPayload); ok {
			p := p
			if n.To == "a" {
				endA = &p
			} else {
				endB = &p
			}
		}
		if n.Type == domain.EventChangeTurn {
			t.Fatalf("change_turn sent after a win")
		}
	}
	if endA == nil || !endA.IsWinner || endB == nil || endB.IsWinner {
		t.Fatalf("game_end a=%v b=%v", endA, endB)
	}

	for _, c := range []string{"a", "b"} {
		if _, err := d.Guess(c, "1234"); !domain.IsKind(err, domain.KindConflict) {
			t.Fatalf("guess after finish by %s = %v; want conflict", c, err)
		}
	}
}

func TestLeaveForfeit(t *testing.T) {
	d := startedDuel(t)

	ns, discard := d.Leave("a")
	if discard {
		t.Fatalf("forfeit should keep the session")
	}
	s := d.Session()
	if !s.Finished || s.Winner != "b" {
		t.Fatalf("session after forfeit = %+v", s)
	}
	if len(ns) != 1 || ns[0].To != "b" {
		t.Fatalf("forfeit notices = %+v", ns)
	}
	if p := ns[0].Payload.(domain.GameEndPayload); !p.IsWinner || p.Reason != domain.ReasonOpponentLeft {
		t.Fatalf("forfeit payload = %+v", p)
	}

	if _, discard := d.Leave("b"); !discard {
		t.Fatalf("last player leaving a finished game should discard it")
	}
}

func TestLeaveAlone(t *testing.T) {
	d := NewDuel(&domain.DuelSession{ID: "s1"}, first)
	_ = d.Bind("a")
	ns, discard := d.Leave("a")
	if !discard || len(ns) != 0 {
		t.Fatalf("leave alone = %v, %v", ns, discard)
	}
	if _, discard := d.Leave("stranger"); discard {
		t.Fatalf("stranger leaving must not discard")
	}
}
