package domain

// Inbound event names.
const (
	EventRequestRandomMatch = "request_random_match"
	EventCancelRandomMatch  = "cancel_random_match"
	EventApproveRandomMatch = "approve_random_match"
	EventCreateSecretMatch  = "create_secret_match"
	EventJoinSecretMatch    = "join_secret_match"
	EventSetNumber          = "set_number"
	EventGuessNumber        = "guess_number"
)

// Outbound event names.
const (
	EventConnected           = "connected"
	EventMatched             = "matched"
	EventMatchApproved       = "match_approved"
	EventMatchCancelled      = "match_cancelled"
	EventSecretMatchCreated  = "secret_match_created"
	EventNoUsersAvailable    = "no_users_available"
	EventGameStart           = "game_start"
	EventNumberRegistered    = "number_registered"
	EventChangeTurn          = "change_turn"
	EventGuessResult         = "guess_result"
	EventOpponentGuessResult = "opponent_guess_result"
	EventGameEnd             = "game_end"
	EventError               = "error"
)

// Notice is one outbound event addressed to a connection.
type Notice struct {
	To      string
	Type    string
	Payload any
}

// client → server

type TurnTimeLimitPayload struct {
	TurnTimeLimit int `json:"turnTimeLimit,omitempty"`
}

type JoinCodePayload struct {
	Code int `json:"code"`
}

type NumberPayload struct {
	Code string `json:"code"`
}

// server → client

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	SessionID    string `json:"sessionId,omitempty"`
}

type MatchedPayload struct {
	Me       PublicInfo `json:"me"`
	Opponent PublicInfo `json:"opponent"`
	MatchID  string     `json:"matchId"`
}

type MatchApprovedPayload struct {
	SessionID     string `json:"sessionId"`
	TurnTimeLimit int    `json:"turnTimeLimit"`
}

type SecretMatchCreatedPayload struct {
	Code int `json:"code"`
}

type GameStartPayload struct {
	MyNumber       string `json:"myNumber"`
	MyConnectionID string `json:"myConnectionId"`
}

type ChangeTurnPayload struct {
	TurnHolder string `json:"turnHolder"`
}

type GuessResultPayload struct {
	Code    string `json:"code"`
	Strikes int    `json:"strikes"`
	Balls   int    `json:"balls"`
}

type OpponentGuessResultPayload struct {
	Strikes int `json:"strikes"`
	Balls   int `json:"balls"`
}

type GameEndPayload struct {
	IsWinner bool   `json:"isWinner"`
	Reason   string `json:"reason,omitempty"`
}

type ErrorPayload struct {
	Message      string `json:"message"`
	StatusCode   int    `json:"statusCode"`
	RedirectHint string `json:"redirectHint,omitempty"`
}

type Empty struct{}

// Game end reasons.
const (
	ReasonSolved       = "solved"
	ReasonOpponentLeft = "opponent_left"
)

// NewErrorNotice renders err as an error event for connID.
func NewErrorNotice(connID string, err error) Notice {
	de := AsError(err)
	msg := de.Message
	return Notice{
		To:   connID,
		Type: EventError,
		Payload: ErrorPayload{
			Message:      msg,
			StatusCode:   de.StatusCode(),
			RedirectHint: de.RedirectHint,
		},
	}
}
