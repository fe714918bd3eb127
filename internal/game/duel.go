package game

import (
	"math/rand"

	"number_baseball/internal/domain"
)

// Duel drives the state machine of one session. It mutates the wrapped
// session in place and returns the notices the transition produced; callers
// are expected to run it on a private copy and persist it only on success.
type Duel struct {
	s    *domain.DuelSession
	intn func(n int) int
}

func NewDuel(s *domain.DuelSession, intn func(n int) int) *Duel {
	if intn == nil {
		intn = rand.Intn
	}
	return &Duel{s: s, intn: intn}
}

func (d *Duel) Session() *domain.DuelSession { return d.s }

// Bind seats connID in the first free slot. Rebinding is a no-op.
func (d *Duel) Bind(connID string) error {
	s := d.s
	if s.Slot(connID) != 0 {
		return nil
	}
	if s.Finished {
		return domain.ErrAlreadyFinished
	}
	switch {
	case s.Player1 == "":
		s.Player1 = connID
	case s.Player2 == "":
		s.Player2 = connID
	default:
		return domain.ErrRoomFull
	}
	return nil
}

// SubmitNumber commits connID's secret number. The second commitment starts
// the game and picks the first turn holder at random.
func (d *Duel) SubmitNumber(connID, number string) ([]domain.Notice, error) {
	s := d.s
	slot := s.Slot(connID)
	if slot == 0 {
		return nil, domain.ErrNotInRoom
	}
	if s.Finished {
		return nil, domain.ErrAlreadyFinished
	}
	if s.Started {
		return nil, domain.ErrAlreadyStarted
	}
	if err := ValidateNumber(number); err != nil {
		return nil, err
	}
	if (slot == 1 && s.Code1 != "") || (slot == 2 && s.Code2 != "") {
		return nil, domain.ErrAlreadyCommitted
	}

	if slot == 1 {
		s.Code1 = number
	} else {
		s.Code2 = number
	}

	if s.Code1 == "" || s.Code2 == "" {
		return []domain.Notice{{To: connID, Type: domain.EventNumberRegistered, Payload: domain.Empty{}}}, nil
	}

	s.Started = true
	players := [2]string{s.Player1, s.Player2}
	s.TurnHolder = players[d.intn(2)]

	turn := domain.ChangeTurnPayload{TurnHolder: s.TurnHolder}
	return []domain.Notice{
		{To: s.Player1, Type: domain.EventGameStart, Payload: domain.GameStartPayload{MyNumber: s.Code1, MyConnectionID: s.Player1}},
		{To: s.Player2, Type: domain.EventGameStart, Payload: domain.GameStartPayload{MyNumber: s.Code2, MyConnectionID: s.Player2}},
		{To: s.Player1, Type: domain.EventChangeTurn, Payload: turn},
		{To: s.Player2, Type: domain.EventChangeTurn, Payload: turn},
	}, nil
}

// Guess scores connID's guess against the opponent's number.
func (d *Duel) Guess(connID, number string) ([]domain.Notice, error) {
	s := d.s
	slot := s.Slot(connID)
	if slot == 0 {
		return nil, domain.ErrNotInRoom
	}
	if s.Finished {
		return nil, domain.ErrAlreadyFinished
	}
	if !s.Started {
		return nil, domain.ErrNotStarted
	}
	if s.TurnHolder != connID {
		return nil, domain.ErrNotYourTurn
	}
	if err := ValidateNumber(number); err != nil {
		return nil, err
	}

	opponent := s.Opponent(connID)
	target := s.Code2
	if slot == 2 {
		target = s.Code1
	}
	strikes, balls := Score(number, target)

	rec := domain.GuessRecord{Guess: number, Strikes: strikes, Balls: balls}
	if slot == 1 {
		s.History1 = prepend(s.History1, rec)
	} else {
		s.History2 = prepend(s.History2, rec)
	}

	notices := []domain.Notice{
		{To: connID, Type: domain.EventGuessResult, Payload: domain.GuessResultPayload{Code: number, Strikes: strikes, Balls: balls}},
		{To: opponent, Type: domain.EventOpponentGuessResult, Payload: domain.OpponentGuessResultPayload{Strikes: strikes, Balls: balls}},
	}

	if strikes == NumberLength {
		s.Finished = true
		s.Winner = connID
		s.TurnHolder = ""
		return append(notices,
			domain.Notice{To: connID, Type: domain.EventGameEnd, Payload: domain.GameEndPayload{IsWinner: true, Reason: domain.ReasonSolved}},
			domain.Notice{To: opponent, Type: domain.EventGameEnd, Payload: domain.GameEndPayload{IsWinner: false, Reason: domain.ReasonSolved}},
		), nil
	}

	s.TurnHolder = opponent
	turn := domain.ChangeTurnPayload{TurnHolder: opponent}
	return append(notices,
		domain.Notice{To: connID, Type: domain.EventChangeTurn, Payload: turn},
		domain.Notice{To: opponent, Type: domain.EventChangeTurn, Payload: turn},
	), nil
}

// Leave handles connID going away. It reports discard=true when nothing is
// left worth keeping: the game was already over or nobody else is seated.
func (d *Duel) Leave(connID string) (notices []domain.Notice, discard bool) {
	s := d.s
	if s.Slot(connID) == 0 {
		return nil, false
	}
	if s.Finished {
		return nil, true
	}
	opponent := s.Opponent(connID)
	if opponent == "" {
		return nil, true
	}
	s.Finished = true
	s.Winner = opponent
	s.TurnHolder = ""
	return []domain.Notice{
		{To: opponent, Type: domain.EventGameEnd, Payload: domain.GameEndPayload{IsWinner: true, Reason: domain.ReasonOpponentLeft}},
	}, false
}

func prepend(h []domain.GuessRecord, rec domain.GuessRecord) []domain.GuessRecord {
	out := make([]domain.GuessRecord, 0, len(h)+1)
	out = append(out, rec)
	return append(out, h...)
}
