package storage

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

func TestPollRegistry_ConcurrentReserveSingleWinner(t *testing.T) {
	r := NewPollRegistry()
	const workers = 32

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Reserve("42")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || conflicts.Load() != workers-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1/%d", wins.Load(), conflicts.Load(), workers-1)
	}
}

func TestPollRegistry_ReserveCommitRelease(t *testing.T) {
	r := NewPollRegistry()
	if err := r.Reserve("u1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(domain.MembershipPoll{MessageID: "m0", UserID: "u1"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Add during reservation: err = %v, want conflict", err)
	}
	if err := r.Commit(domain.MembershipPoll{MessageID: "m1", UserID: "u1", CreatedAt: 10}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.Reserve("u1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Reserve after commit: err = %v, want conflict", err)
	}

	// reserva liberada tras un fallo de envío
	if err := r.Reserve("u2"); err != nil {
		t.Fatal(err)
	}
	r.Release("u2")
	r.Release("u2")
	if err := r.Reserve("u2"); err != nil {
		t.Fatalf("Reserve after release: %v", err)
	}
}

func TestPollRegistry_CancelledReservationFailsCommit(t *testing.T) {
	r := NewPollRegistry()
	if r.CancelReservation("u1") {
		t.Fatal("CancelReservation without reservation should report false")
	}
	if err := r.Reserve("u1"); err != nil {
		t.Fatal(err)
	}
	if !r.CancelReservation("u1") {
		t.Fatal("CancelReservation should find the reservation")
	}
	err := r.Commit(domain.MembershipPoll{MessageID: "m1", UserID: "u1"})
	if !errors.Is(err, ErrReservationCancelled) {
		t.Fatalf("Commit after cancel: err = %v, want ErrReservationCancelled", err)
	}
	if _, ok := r.ByUser("u1"); ok {
		t.Fatal("cancelled poll was registered")
	}
	if _, ok := r.ByMessage("m1"); ok {
		t.Fatal("cancelled poll indexed by message")
	}
	// la reserva se consumió: se puede volver a intentar
	if err := r.Reserve("u1"); err != nil {
		t.Fatalf("Reserve after cancelled commit: %v", err)
	}
}

func TestPollRegistry_IndicesStayInSync(t *testing.T) {
	r := NewPollRegistry()
	p := domain.MembershipPoll{MessageID: "m1", UserID: "u1", CreatedAt: 5}
	if err := r.Add(p); err != nil {
		t.Fatal(err)
	}
	if got, ok := r.ByUser("u1"); !ok || got != p {
		t.Fatalf("ByUser = %+v, %v", got, ok)
	}
	if got, ok := r.ByMessage("m1"); !ok || got != p {
		t.Fatalf("ByMessage = %+v, %v", got, ok)
	}

	if err := r.Add(domain.MembershipPoll{MessageID: "m1", UserID: "u9"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate message: err = %v, want conflict", err)
	}
	if err := r.Add(domain.MembershipPoll{MessageID: "", UserID: "u9"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty message id: err = %v, want invalid input", err)
	}

	if _, ok := r.RemoveByMessage("m1"); !ok {
		t.Fatal("RemoveByMessage: not found")
	}
	if _, ok := r.ByUser("u1"); ok {
		t.Error("user index still holds removed poll")
	}
	if _, ok := r.RemoveByUser("u1"); ok {
		t.Error("second removal reported success")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestPollRegistry_RemoveStaleIsNoop(t *testing.T) {
	r := NewPollRegistry()
	old := domain.MembershipPoll{MessageID: "m1", UserID: "u1", CreatedAt: 1}
	if err := r.Add(old); err != nil {
		t.Fatal(err)
	}
	if !r.Remove(old) {
		t.Fatal("first Remove = false")
	}
	fresh := domain.MembershipPoll{MessageID: "m2", UserID: "u1", CreatedAt: 2}
	if err := r.Add(fresh); err != nil {
		t.Fatal(err)
	}
	if r.Remove(old) {
		t.Fatal("Remove of stale poll = true")
	}
	if _, ok := r.ByUser("u1"); !ok {
		t.Fatal("stale removal dropped the fresh poll")
	}
}

func TestPollRegistry_ListOrderAndReplace(t *testing.T) {
	r := NewPollRegistry()
	in := []domain.MembershipPoll{
		{MessageID: "m3", UserID: "u3", CreatedAt: 30},
		{MessageID: "m1", UserID: "u1", CreatedAt: 10},
		{MessageID: "m2", UserID: "u2", CreatedAt: 10},
	}
	if err := r.Replace(in); err != nil {
		t.Fatal(err)
	}
	got := r.List()
	want := []string{"m1", "m2", "m3"}
	for i, p := range got {
		if p.MessageID != want[i] {
			t.Fatalf("List()[%d] = %s, want %s", i, p.MessageID, want[i])
		}
	}

	dup := []domain.MembershipPoll{
		{MessageID: "a", UserID: "u1"},
		{MessageID: "b", UserID: "u1"},
	}
	if err := r.Replace(dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Replace with dup user: err = %v, want conflict", err)
	}
	if r.Len() != 3 {
		t.Fatalf("failed Replace mutated registry: Len = %d", r.Len())
	}
}
