package ws

import (
	"context"
	"encoding/json"
	"time"

	"number_baseball/internal/domain"
	"number_baseball/internal/duel"
	"number_baseball/internal/matchmaking"
	"number_baseball/internal/metrics"
)

const eventTimeout = 5 * time.Second

// HandlerFunc handles one inbound event for a connection.
type HandlerFunc func(ctx context.Context, c *Client, payload json.RawMessage) error

// Dispatcher routes inbound events by name. Matchmaking and duel connections
// each have their own table.
type Dispatcher struct {
	hub         *Hub
	coordinator *matchmaking.Coordinator
	duels       *duel.Service

	matchmaking map[string]HandlerFunc
	duel        map[string]HandlerFunc
}

func NewDispatcher(hub *Hub, coordinator *matchmaking.Coordinator, duels *duel.Service) *Dispatcher {
	d := &Dispatcher{hub: hub, coordinator: coordinator, duels: duels}
	d.matchmaking = map[string]HandlerFunc{
		domain.EventRequestRandomMatch: d.requestRandomMatch,
		domain.EventCancelRandomMatch:  d.cancelRandomMatch,
		domain.EventApproveRandomMatch: d.approveRandomMatch,
		domain.EventCreateSecretMatch:  d.createSecretMatch,
		domain.EventJoinSecretMatch:    d.joinSecretMatch,
	}
	d.duel = map[string]HandlerFunc{
		domain.EventSetNumber:   d.setNumber,
		domain.EventGuessNumber: d.guessNumber,
	}
	return d
}

// Dispatch decodes one frame and runs its handler. Failures go back to the
// sender as an error event.
func (d *Dispatcher) Dispatch(c *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.fail(c, "", domain.ErrMalformedPayload)
		return
	}

	table := d.matchmaking
	if c.InDuel() {
		table = d.duel
	}
	h, ok := table[msg.Type]
	if !ok {
		metrics.EventsReceived.WithLabelValues("unknown").Inc()
		d.fail(c, msg.Type, domain.ErrUnknownEvent)
		return
	}
	metrics.EventsReceived.WithLabelValues(msg.Type).Inc()

	if !c.allow() {
		d.fail(c, msg.Type, domain.ErrTooManyEvents)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if err := h(ctx, c, msg.Payload); err != nil {
		d.fail(c, msg.Type, err)
	}
}

// Connect runs once the connection is registered. Duel connections are bound
// to their session here.
func (d *Dispatcher) Connect(ctx context.Context, c *Client) error {
	if !c.InDuel() {
		return nil
	}
	_, err := d.duels.Bind(ctx, c.SessionID, c.ID)
	return err
}

// Disconnect clears whatever state c left behind.
func (d *Dispatcher) Disconnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var err error
	if c.InDuel() {
		err = d.duels.Leave(ctx, c.ID)
	} else {
		err = d.coordinator.Disconnect(ctx, c.ID)
	}
	if err != nil {
		c.log.Error("disconnect cleanup failed", "error", err)
	}
}

func (d *Dispatcher) fail(c *Client, event string, err error) {
	de := domain.AsError(err)
	metrics.EventErrors.WithLabelValues(string(de.Kind)).Inc()
	if de.Kind == domain.KindInternal {
		c.log.Error("event failed", "event", event, "error", err)
	} else {
		c.log.Debug("event rejected", "event", event, "error", err)
	}
	d.hub.Notify(domain.NewErrorNotice(c.ID, de))
}

func (d *Dispatcher) requestRandomMatch(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p domain.TurnTimeLimitPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	return d.coordinator.RequestRandomMatch(ctx, c.ID, domain.Preferences{UserID: c.UserID, TurnTimeLimit: p.TurnTimeLimit})
}

func (d *Dispatcher) cancelRandomMatch(ctx context.Context, c *Client, _ json.RawMessage) error {
	return d.coordinator.CancelRandomMatch(ctx, c.ID)
}

func (d *Dispatcher) approveRandomMatch(ctx context.Context, c *Client, _ json.RawMessage) error {
	return d.coordinator.ApproveRandomMatch(ctx, c.ID)
}

func (d *Dispatcher) createSecretMatch(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p domain.TurnTimeLimitPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	return d.coordinator.CreateSecretMatch(ctx, c.ID, domain.Preferences{UserID: c.UserID, TurnTimeLimit: p.TurnTimeLimit})
}

func (d *Dispatcher) joinSecretMatch(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p domain.JoinCodePayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	return d.coordinator.JoinSecretMatch(ctx, c.ID, p.Code)
}

func (d *Dispatcher) setNumber(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p domain.NumberPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	return d.duels.SubmitNumber(ctx, c.SessionID, c.ID, p.Code)
}

func (d *Dispatcher) guessNumber(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p domain.NumberPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	return d.duels.Guess(ctx, c.SessionID, c.ID, p.Code)
}
