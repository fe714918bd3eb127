package domain

import "time"

// Phase is derived from the session fields, never stored.
type Phase string

const (
	PhaseAwaitingConnections Phase = "awaiting_connections"
	PhaseCommitting          Phase = "committing"
	PhaseActive              Phase = "active"
	PhaseFinished            Phase = "finished"
)

// GuessRecord is one scored guess.
type GuessRecord struct {
	Guess   string `json:"guess"`
	Strikes int    `json:"strikes"`
	Balls   int    `json:"balls"`
}

// DuelSession is the persisted state of one game between two connections.
type DuelSession struct {
	ID            string        `db:"id" json:"id"`
	Player1       string        `db:"player1" json:"player1,omitempty"`
	Player2       string        `db:"player2" json:"player2,omitempty"`
	Code1         string        `db:"code1" json:"-"`
	Code2         string        `db:"code2" json:"-"`
	TurnHolder    string        `db:"turn_holder" json:"turnHolder,omitempty"`
	Started       bool          `db:"started" json:"started"`
	Finished      bool          `db:"finished" json:"finished"`
	Winner        string        `db:"winner" json:"winner,omitempty"`
	TurnTimeLimit int           `db:"turn_time_limit" json:"turnTimeLimit"`
	History1      []GuessRecord `db:"history1" json:"history1"`
	History2      []GuessRecord `db:"history2" json:"history2"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updatedAt"`
}

func (s *DuelSession) Phase() Phase {
	switch {
	case s.Finished:
		return PhaseFinished
	case s.Started:
		return PhaseActive
	case s.Player1 != "" && s.Player2 != "":
		return PhaseCommitting
	default:
		return PhaseAwaitingConnections
	}
}

// Slot returns 1 or 2 for a bound connection and 0 otherwise.
func (s *DuelSession) Slot(connID string) int {
	switch {
	case connID == "":
		return 0
	case s.Player1 == connID:
		return 1
	case s.Player2 == connID:
		return 2
	default:
		return 0
	}
}

// Opponent returns the other bound connection, or "" if the slot is empty.
func (s *DuelSession) Opponent(connID string) string {
	switch s.Slot(connID) {
	case 1:
		return s.Player2
	case 2:
		return s.Player1
	default:
		return ""
	}
}

// Clone deep-copies the session so a failed mutation can be discarded.
func (s *DuelSession) Clone() *DuelSession {
	c := *s
	c.History1 = append([]GuessRecord(nil), s.History1...)
	c.History2 = append([]GuessRecord(nil), s.History2...)
	return &c
}
