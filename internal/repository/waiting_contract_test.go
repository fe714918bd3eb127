package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"number_baseball/internal/domain"
)

type waitingStore interface {
	Create(ctx context.Context, e *domain.WaitingEntry) (*domain.WaitingEntry, bool, error)
	FindByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error)
	FindByMatchID(ctx context.Context, matchID string) ([]*domain.WaitingEntry, error)
	FindByJoinCode(ctx context.Context, code int) (*domain.WaitingEntry, error)
	ListExcept(ctx context.Context, connID string) ([]*domain.WaitingEntry, error)
	Update(ctx context.Context, connID string, u domain.WaitingUpdate) (*domain.WaitingEntry, error)
	Pair(ctx context.Context, a, b, matchID string) error
	Approve(ctx context.Context, connID string, confirm func(self, partner *domain.WaitingEntry) error) (*domain.WaitingEntry, *domain.WaitingEntry, bool, error)
	ClaimJoinCode(ctx context.Context, code int, claim func(creator *domain.WaitingEntry) error) (*domain.WaitingEntry, error)
	Remove(ctx context.Context, connIDs []string) error
	RemoveByConnection(ctx context.Context, connID string) (*domain.WaitingEntry, error)
}

func intPtr(v int) *int { return &v }

func mustCreate(t *testing.T, s waitingStore, e *domain.WaitingEntry) *domain.WaitingEntry {
	t.Helper()
	got, _, err := s.Create(context.Background(), e)
	if err != nil {
		t.Fatalf("create %s: %v", e.ConnectionID, err)
	}
	return got
}

func runWaitingContract(t *testing.T, newStore func(t *testing.T) waitingStore) {
	t.Run("CreateIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first, created, err := s.Create(ctx, &domain.WaitingEntry{ConnectionID: "a", TurnTimeLimit: 60})
		if err != nil || !created {
			t.Fatalf("first create = %v, %v", created, err)
		}
		again, created, err := s.Create(ctx, &domain.WaitingEntry{ConnectionID: "a", TurnTimeLimit: 30})
		if err != nil || created {
			t.Fatalf("second create = %v, %v; want existing", created, err)
		}
		if again.TurnTimeLimit != first.TurnTimeLimit {
			t.Fatalf("existing entry changed: %d", again.TurnTimeLimit)
		}
	})

	t.Run("JoinCodeUnique", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "a", JoinCode: intPtr(1234)})
		_, _, err := s.Create(context.Background(), &domain.WaitingEntry{ConnectionID: "b", JoinCode: intPtr(1234)})
		if !errors.Is(err, domain.ErrJoinCodeTaken) {
			t.Fatalf("duplicate code = %v; want ErrJoinCodeTaken", err)
		}
		got, err := s.FindByJoinCode(context.Background(), 1234)
		if err != nil || got.ConnectionID != "a" {
			t.Fatalf("find by code = %+v, %v", got, err)
		}
		if _, err := s.FindByJoinCode(context.Background(), 4321); !errors.Is(err, domain.ErrJoinCodeInvalid) {
			t.Fatalf("unknown code = %v", err)
		}
	})

	t.Run("ListExceptSkipsSelf", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "a"})
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "b"})
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "c"})
		list, err := s.ListExcept(context.Background(), "b")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("len = %d; want 2", len(list))
		}
		for _, e := range list {
			if e.ConnectionID == "b" {
				t.Fatal("requester listed")
			}
		}
	})

	t.Run("PairOnlyMatchable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "a"})
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "b"})
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "c"})
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "host", JoinCode: intPtr(5555)})

		if err := s.Pair(ctx, "a", "b", "m1"); err != nil {
			t.Fatalf("pair: %v", err)
		}
		if err := s.Pair(ctx, "c", "a", "m2"); !errors.Is(err, domain.ErrPairTaken) {
			t.Fatalf("pair with matched entry = %v", err)
		}
		if err := s.Pair(ctx, "c", "host", "m3"); !errors.Is(err, domain.ErrPairTaken) {
			t.Fatalf("pair with host = %v", err)
		}
		if err := s.Pair(ctx, "c", "c", "m4"); !errors.Is(err, domain.ErrPairTaken) {
			t.Fatalf("self pair = %v", err)
		}
		c, err := s.FindByConnection(ctx, "c")
		if err != nil || c.MatchID != "" {
			t.Fatalf("failed pair left c = %+v, %v", c, err)
		}
		pair, err := s.FindByMatchID(ctx, "m1")
		if err != nil || len(pair) != 2 {
			t.Fatalf("by match = %d, %v", len(pair), err)
		}
	})

	t.Run("ConcurrentPairClaimsOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "target"})
		const n = 8
		for i := 0; i < n; i++ {
			mustCreate(t, s, &domain.WaitingEntry{ConnectionID: string(rune('a' + i))})
		}
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if err := s.Pair(ctx, id, "target", "m-"+id); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(string(rune('a' + i)))
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("successful pairings = %d; want 1", wins)
		}
	})

	t.Run("ApproveNeedsBoth", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "a"})
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "b"})
		if err := s.Pair(ctx, "a", "b", "m1"); err != nil {
			t.Fatalf("pair: %v", err)
		}

		calls := 0
		confirm := func(self, partner *domain.WaitingEntry) error {
			calls++
			return nil
		}
		_, _, confirmed, err := s.Approve(ctx, "a", confirm)
		if err != nil || confirmed {
			t.Fatalf("first approve = %v, %v", confirmed, err)
		}
		if calls != 0 {
			t.Fatal("confirm ran on single approval")
		}

		self, partner, confirmed, err := s.Approve(ctx, "b", confirm)
		if err != nil || !confirmed {
			t.Fatalf("second approve = %v, %v", confirmed, err)
		}
		if calls != 1 || self.ConnectionID != "b" || partner.ConnectionID != "a" {
			t.Fatalf("confirm calls=%d self=%s partner=%s", calls, self.ConnectionID, partner.ConnectionID)
		}
		if _, err := s.FindByConnection(ctx, "a"); !errors.Is(err, domain.ErrEntryNotFound) {
			t.Fatalf("a still waiting: %v", err)
		}
	})

	t.Run("ConcurrentApproveConfirmsOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for round := 0; round < 20; round++ {
			a, b := fmt.Sprintf("a%d", round), fmt.Sprintf("b%d", round)
			mustCreate(t, s, &domain.WaitingEntry{ConnectionID: a})
			mustCreate(t, s, &domain.WaitingEntry{ConnectionID: b})
			if err := s.Pair(ctx, a, b, fmt.Sprintf("m%d", round)); err != nil {
				t.Fatalf("pair: %v", err)
			}

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				calls     int
				confirmed int
			)
			confirm := func(_, _ *domain.WaitingEntry) error {
				mu.Lock()
				calls++
				mu.Unlock()
				return nil
			}
			for _, id := range []string{a, b} {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					_, _, ok, err := s.Approve(ctx, id, confirm)
					if err != nil {
						t.Errorf("approve %s: %v", id, err)
						return
					}
					if ok {
						mu.Lock()
						confirmed++
						mu.Unlock()
					}
				}(id)
			}
			wg.Wait()

			if calls != 1 || confirmed != 1 {
				t.Fatalf("round %d: confirm calls=%d confirmed=%d; want 1, 1", round, calls, confirmed)
			}
			for _, id := range []string{a, b} {
				if _, err := s.FindByConnection(ctx, id); !errors.Is(err, domain.ErrEntryNotFound) {
					t.Fatalf("round %d: %s still waiting: %v", round, id, err)
				}
			}
		}
	})

	t.Run("ApproveConfirmFailureKeepsEntries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "a"})
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "b"})
		_ = s.Pair(ctx, "a", "b", "m1")
		_, _, _, _ = s.Approve(ctx, "a", nil)

		boom := errors.New("boom")
		_, _, _, err := s.Approve(ctx, "b", func(_, _ *domain.WaitingEntry) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("approve = %v; want boom", err)
		}
		if _, err := s.FindByConnection(ctx, "b"); err != nil {
			t.Fatalf("b removed after failed confirm: %v", err)
		}
	})

	t.Run("ApproveWithoutPairing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, _, _, err := s.Approve(ctx, "nobody", nil); !errors.Is(err, domain.ErrEntryNotFound) {
			t.Fatalf("unknown = %v", err)
		}
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "a"})
		if _, _, _, err := s.Approve(ctx, "a", nil); !errors.Is(err, domain.ErrNoPendingMatch) {
			t.Fatalf("unpaired = %v", err)
		}
	})

	t.Run("UpdateClearsMatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "a"})
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "b"})
		_ = s.Pair(ctx, "a", "b", "m1")
		empty := ""
		no := false
		got, err := s.Update(ctx, "a", domain.WaitingUpdate{MatchID: &empty, Approved: &no})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got.MatchID != "" || !got.Matchable() {
			t.Fatalf("entry still paired: %+v", got)
		}
		if _, err := s.Update(ctx, "zzz", domain.WaitingUpdate{}); !errors.Is(err, domain.ErrEntryNotFound) {
			t.Fatalf("update unknown = %v", err)
		}
	})

	t.Run("ClaimJoinCode", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "host", JoinCode: intPtr(2468)})

		rejected := errors.New("rejected")
		if _, err := s.ClaimJoinCode(ctx, 2468, func(*domain.WaitingEntry) error { return rejected }); !errors.Is(err, rejected) {
			t.Fatalf("rejected claim = %v", err)
		}
		if _, err := s.FindByJoinCode(ctx, 2468); err != nil {
			t.Fatalf("creator removed by rejected claim: %v", err)
		}

		creator, err := s.ClaimJoinCode(ctx, 2468, func(*domain.WaitingEntry) error { return nil })
		if err != nil || creator.ConnectionID != "host" {
			t.Fatalf("claim = %+v, %v", creator, err)
		}
		if _, err := s.ClaimJoinCode(ctx, 2468, func(*domain.WaitingEntry) error { return nil }); !errors.Is(err, domain.ErrJoinCodeInvalid) {
			t.Fatalf("second claim = %v", err)
		}
	})

	t.Run("RemoveByConnection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustCreate(t, s, &domain.WaitingEntry{ConnectionID: "a", JoinCode: intPtr(1357)})
		got, err := s.RemoveByConnection(ctx, "a")
		if err != nil || got == nil || got.JoinCode == nil || *got.JoinCode != 1357 {
			t.Fatalf("remove = %+v, %v", got, err)
		}
		got, err = s.RemoveByConnection(ctx, "a")
		if err != nil || got != nil {
			t.Fatalf("second remove = %+v, %v", got, err)
		}
		if err := s.Remove(ctx, []string{"x", "y"}); err != nil {
			t.Fatalf("remove missing: %v", err)
		}
	})
}

func TestMemoryWaitingRepository(t *testing.T) {
	runWaitingContract(t, func(t *testing.T) waitingStore {
		return NewMemoryWaitingRepository()
	})
}
