package domain

import "time"

// WaitingEntry is a connection queued for a random or secret match.
type WaitingEntry struct {
	ConnectionID  string    `db:"connection_id" json:"connectionId"`
	UserID        *int64    `db:"user_id" json:"userId,omitempty"`
	TurnTimeLimit int       `db:"turn_time_limit" json:"turnTimeLimit,omitempty"`
	JoinCode      *int      `db:"join_code" json:"-"`
	MatchID       string    `db:"match_id" json:"-"`
	Approved      bool      `db:"approved" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"-"`
}

// Preferences are the requester-supplied fields of a new entry.
type Preferences struct {
	UserID        *int64
	TurnTimeLimit int
	JoinCode      *int
}

// WaitingUpdate carries the mutable fields of an entry. A nil field is left
// untouched; an empty MatchID clears the pairing.
type WaitingUpdate struct {
	MatchID  *string
	Approved *bool
}

// PublicInfo is what the opponent gets to see in a matched event.
type PublicInfo struct {
	ConnectionID  string `json:"connectionId"`
	UserID        *int64 `json:"userId,omitempty"`
	TurnTimeLimit int    `json:"turnTimeLimit,omitempty"`
}

func (e *WaitingEntry) Public() PublicInfo {
	return PublicInfo{
		ConnectionID:  e.ConnectionID,
		UserID:        e.UserID,
		TurnTimeLimit: e.TurnTimeLimit,
	}
}

// Clone returns a copy that shares no pointers with e.
func (e *WaitingEntry) Clone() *WaitingEntry {
	c := *e
	if e.UserID != nil {
		uid := *e.UserID
		c.UserID = &uid
	}
	if e.JoinCode != nil {
		code := *e.JoinCode
		c.JoinCode = &code
	}
	return &c
}

// Matchable reports whether the entry can be offered to a random requester.
func (e *WaitingEntry) Matchable() bool {
	return e.JoinCode == nil && e.MatchID == ""
}

// CompatibleWith holds when both time limits are equal or either is unset.
func (e *WaitingEntry) CompatibleWith(turnTimeLimit int) bool {
	return e.TurnTimeLimit == 0 || turnTimeLimit == 0 || e.TurnTimeLimit == turnTimeLimit
}

// Apply mutates e with the non-nil fields of u.
func (e *WaitingEntry) Apply(u WaitingUpdate) {
	if u.MatchID != nil {
		e.MatchID = *u.MatchID
	}
	if u.Approved != nil {
		e.Approved = *u.Approved
	}
}
